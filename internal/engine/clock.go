package engine

import "sync/atomic"

// Clock hands out run sequence numbers. The run log orders by seq, never by
// wall time, so seqs must be strictly increasing across goroutines.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Next is after+1. Pass a run log's
// LastSeq to keep appending to it.
func NewClock(after int64) *Clock {
	c := &Clock{}
	c.last.Store(after)
	return c
}

// Next claims the following seq.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Last returns the most recently claimed seq, or the starting point.
func (c *Clock) Last() int64 {
	return c.last.Load()
}
