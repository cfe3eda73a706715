package testutil

import (
	"sync"
	"time"
)

// ManualClock is a thread-safe wall clock pinned by the test.
//
// Unlike the engine's SystemClock it only moves when the test says so,
// which makes time-cutoff behavior (past reminders, watermarks, interval
// elapse) exactly reproducible.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock pinned at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the pinned time. Satisfies engine.Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
