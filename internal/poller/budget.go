package poller

import "sync/atomic"

// Budget counts how many more consecutive failed cycles are tolerated.
//
// Only the supervisor loop mutates a Budget; Remaining may be read from any
// goroutine.
type Budget struct {
	tries     int64
	remaining atomic.Int64
}

// NewBudget returns a full budget of tries units. tries below 1 is raised to 1.
func NewBudget(tries int) *Budget {
	if tries < 1 {
		tries = 1
	}
	b := &Budget{tries: int64(tries)}
	b.remaining.Store(b.tries)
	return b
}

// Reset restores the full budget.
func (b *Budget) Reset() {
	b.remaining.Store(b.tries)
}

// Fail spends one unit and reports whether the budget is now exhausted.
// The budget never goes below zero.
func (b *Budget) Fail() bool {
	n := b.remaining.Load() - 1
	if n < 0 {
		n = 0
	}
	b.remaining.Store(n)
	return n == 0
}

// Remaining returns the units left.
func (b *Budget) Remaining() int {
	return int(b.remaining.Load())
}

// Tries returns the full budget size.
func (b *Budget) Tries() int {
	return int(b.tries)
}
