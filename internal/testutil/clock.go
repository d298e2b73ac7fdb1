package testutil

import (
	"sync"
	"time"
)

// ManualClock provides a thread-safe uptime clock under manual control.
//
// Unlike event.SystemClock, ManualClock only moves when a test advances it.
// This makes injected event timestamps reproducible: the same scenario with
// the same clock steps produces identical DownTime and EventTime values.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManualClock creates a manual clock starting at the given uptime.
func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{now: start}
}

// Uptime returns the current manual uptime without advancing it.
//
// Implements event.Clock.
func (c *ManualClock) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
//
// Advancing by a negative duration is allowed but makes timestamps
// non-monotonic, which most callers do not expect.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set jumps the clock to an absolute uptime.
//
// Used for test reuse. After Set(0) the clock behaves as freshly created.
func (c *ManualClock) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = d
}

// SteppingClock advances itself by a fixed step on every Uptime call.
//
// Each observation of the clock lands on a distinct, predictable instant.
// This is how tests verify that retried key events are restamped: the
// delivered timestamp reveals which attempt produced it.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu   sync.Mutex
	now  time.Duration
	step time.Duration
}

// NewSteppingClock creates a clock that starts at zero and advances by
// step before every reading. The first Uptime call returns step.
func NewSteppingClock(step time.Duration) *SteppingClock {
	return &SteppingClock{step: step}
}

// Uptime advances the clock by one step and returns the new uptime.
//
// Implements event.Clock.
func (c *SteppingClock) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}
