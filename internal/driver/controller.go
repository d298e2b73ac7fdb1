package driver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/calmloop/settle/internal/display"
	"github.com/calmloop/settle/internal/event"
	"github.com/calmloop/settle/internal/idling"
	"github.com/calmloop/settle/internal/looper"
)

// DefaultIdleTimeout bounds every idle convergence unless reconfigured.
const DefaultIdleTimeout = 26 * time.Second

// Operation names used in precondition errors and logs.
const (
	opInjectPointer = "inject pointer event"
	opInjectKey     = "inject key event"
	opInjectText    = "inject text"
	opWaitUntilIdle = "wait until idle"
	opWaitAtLeast   = "wait at least"
)

// Controller is the injection surface over one simulated display: it drives
// the control loop to quiescence around every injected event and routes
// events through the current window stack.
//
// Every public method must be called on the control loop's executor
// goroutine; anything else is a PreconditionError. The registry and the
// window source may be mutated from other goroutines between calls.
type Controller struct {
	control *looper.Loop
	src     display.Source
	reg     *idling.Registry

	clock  event.Clock
	tokens TokenGenerator
	seq    *Seq
	rec    Recorder

	mu      sync.Mutex
	timeout time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock substitutes the uptime clock stamping injected events.
func WithClock(c event.Clock) Option {
	return func(d *Controller) { d.clock = c }
}

// WithTokens substitutes the correlation-token generator.
func WithTokens(g TokenGenerator) Option {
	return func(d *Controller) { d.tokens = g }
}

// WithSeq shares a sequence with the caller, so driver records interleave
// with the caller's own in one total order.
func WithSeq(s *Seq) Option {
	return func(d *Controller) { d.seq = s }
}

// WithRecorder installs the operation recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Controller) { d.rec = r }
}

// WithIdleTimeout sets the initial idling timeout.
func WithIdleTimeout(t time.Duration) Option {
	return func(d *Controller) { d.timeout = t }
}

// New creates a Controller over the given control loop, window source, and
// resource registry.
func New(control *looper.Loop, src display.Source, reg *idling.Registry, opts ...Option) *Controller {
	c := &Controller{
		control: control,
		src:     src,
		reg:     reg,
		clock:   event.NewSystemClock(),
		tokens:  UUIDv7Tokens{},
		seq:     NewSeq(),
		timeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetIdleTimeout reconfigures the idling timeout for subsequent waits.
func (c *Controller) SetIdleTimeout(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = t
}

// IdleTimeout returns the currently configured idling timeout.
func (c *Controller) IdleTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// Seq exposes the controller's sequence for callers who record alongside it.
func (c *Controller) Seq() *Seq {
	return c.seq
}

// Clock exposes the uptime clock events are stamped with.
func (c *Controller) Clock() event.Clock {
	return c.clock
}

// checkOnLoop enforces the control-goroutine precondition.
func (c *Controller) checkOnLoop(op string) error {
	if !c.control.IsCurrent() {
		return &PreconditionError{Op: op, Message: "not on the control loop"}
	}
	return nil
}

// WaitAtLeast drains and polls the control loop until at least d has
// elapsed, regardless of idle state. Work posted during the wait runs as it
// arrives.
func (c *Controller) WaitAtLeast(d time.Duration) error {
	if err := c.checkOnLoop(opWaitAtLeast); err != nil {
		return err
	}

	start := time.Now()
	deadline := start.Add(d)

	c.control.Drain()
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		c.control.Poll(remaining)
		c.control.Drain()
	}

	elapsed := time.Since(start)
	c.recordWait(WaitRecord{
		Seq:     c.seq.Next(),
		Kind:    WaitAtLeastKind,
		Outcome: OutcomeOK,
		Elapsed: elapsed,
	})
	slog.Debug("waited at least", "requested", d, "elapsed", elapsed)
	return nil
}

func (c *Controller) recordWait(rec WaitRecord) {
	if c.rec == nil {
		return
	}
	c.rec.RecordWait(rec)
}

func (c *Controller) recordInjection(rec InjectionRecord) {
	if c.rec == nil {
		return
	}
	c.rec.RecordInjection(rec)
}
