package event

import "time"

// Clock reports elapsed uptime for event timestamping.
//
// Uptime is a monotonic duration, not wall-clock time: injected events carry
// "time since the display came up", and retry restamping only needs a value
// that never runs backwards.
type Clock interface {
	Uptime() time.Duration
}

// SystemClock measures uptime monotonically from its construction.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock whose uptime starts at zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Uptime returns the duration since the clock was created.
func (c *SystemClock) Uptime() time.Duration {
	return time.Since(c.start)
}
