package testutil

import (
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// DeterministicClock hands out change dates 1, 2, 3, ... for tests.
//
// Unlike object.Clock it can be reset, so one scenario can be replayed with
// identical change dates.
//
// Thread-safety: all methods are safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	seq object.ChangeDate
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next change date.
func (c *DeterministicClock) Next() object.ChangeDate {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last change date without incrementing.
func (c *DeterministicClock) Current() object.ChangeDate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
