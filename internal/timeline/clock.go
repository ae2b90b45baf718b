package timeline

import "sync/atomic"

// Clock is a monotonic logical clock. The first call to Next returns 1.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments and returns the sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
