package poller

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stringer struct{}

func (stringer) String() string { return "custom" }

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "Normal (On-Grid)", "Normal (On-Grid)"},
		{"float", 345.6, "345.6"},
		{"integral float", 50.0, "50.0"},
		{"negative float", -1.5, "-1.5"},
		{"float32", float32(0.5), "0.5"},
		{"large float stays plain", 123456789.0, "123456789.0"},
		{"NaN", math.NaN(), "NaN"},
		{"int", 42, "42"},
		{"int64", int64(-200), "-200"},
		{"int16", int16(-7), "-7"},
		{"uint16", uint16(65535), "65535"},
		{"uint64", uint64(1) << 40, "1099511627776"},
		{"bool", true, "True"},
		{"time", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), "2024-01-02 10:00:00"},
		{"stringer", stringer{}, "custom"},
		{"slice", []int{1, 2}, "[1 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.value))
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, "2024-01-02T10:00:00", NormalizeTimestamp("2024-01-02 10:00:00"))
	assert.Equal(t, "no-space", NormalizeTimestamp("no-space"))

	once := NormalizeTimestamp("2024-01-02 10:00:00")
	assert.Equal(t, once, NormalizeTimestamp(once), "normalisation must be idempotent")
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "solar/vpv1", Topic("solar", "vpv1"))
	assert.Equal(t, "home/pv/e_day", Topic("home/pv", "e_day"))
}
