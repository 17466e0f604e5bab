package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudget_ExhaustsAfterTries(t *testing.T) {
	b := NewBudget(3)
	assert.Equal(t, 3, b.Remaining())
	assert.Equal(t, 3, b.Tries())

	assert.False(t, b.Fail())
	assert.False(t, b.Fail())
	assert.True(t, b.Fail())
	assert.Equal(t, 0, b.Remaining())
}

func TestBudget_NeverNegative(t *testing.T) {
	b := NewBudget(1)

	assert.True(t, b.Fail())
	assert.True(t, b.Fail())
	assert.Equal(t, 0, b.Remaining())
}

func TestBudget_ResetRestoresFully(t *testing.T) {
	b := NewBudget(5)
	for i := 0; i < 4; i++ {
		b.Fail()
	}
	assert.Equal(t, 1, b.Remaining())

	b.Reset()
	assert.Equal(t, 5, b.Remaining())
}

func TestBudget_MinimumOne(t *testing.T) {
	assert.Equal(t, 1, NewBudget(0).Tries())
	assert.Equal(t, 1, NewBudget(-3).Remaining())
}
