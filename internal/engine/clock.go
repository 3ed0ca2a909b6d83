package engine

import "sync/atomic"

// Clock is a monotonic logical clock. Every pass is stamped with a strictly
// increasing seq so traces order deterministically without wall-clock time.
//
// Clock is safe for concurrent use, so a Grid can share one clock across the
// engines of all its rows.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
