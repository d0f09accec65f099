package object

import "sync/atomic"

// Clock hands out strictly increasing change dates for objects that have no
// filesystem modification time (e.g. objects built in memory).
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. The first Next returns start+1.
func NewClockAt(start ChangeDate) *Clock {
	c := &Clock{}
	c.seq.Store(int64(start))
	return c
}

// Next returns the next change date.
func (c *Clock) Next() ChangeDate {
	return ChangeDate(c.seq.Add(1))
}

// Current returns the last handed-out change date.
func (c *Clock) Current() ChangeDate {
	return ChangeDate(c.seq.Load())
}
