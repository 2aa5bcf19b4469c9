package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time deterministic runs are pinned to. The date and
// timestamp signals set by ExecuteIR derive from it.
var Epoch = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// FrozenClock is a wall clock that only moves when told to.
// Pass its Now method to engine.WithNow.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FrozenClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFrozenClock creates a clock stopped at t.
func NewFrozenClock(t time.Time) *FrozenClock {
	return &FrozenClock{now: t}
}

// Now returns the current frozen time.
func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FrozenClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FrozenClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
