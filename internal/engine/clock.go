package engine

import "sync/atomic"

// Clock hands out the logical seq of each action. Seqs start at 1 and are
// strictly increasing; the journal orders actions by them.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after seq start, as after a
// journal restore.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out, or the start position.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
