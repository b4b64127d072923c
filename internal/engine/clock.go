package engine

import "sync/atomic"

// Clock is the engine's logical clock. It stamps tokens as they are
// created and journal records as they are written, so recency ordering on
// the agenda never depends on wall time.
//
// Clock is safe for concurrent use, although only the goroutine holding
// the working-memory lock advances it in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new time.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current time without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
