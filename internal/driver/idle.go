package driver

import (
	"log/slog"
	"sort"
	"time"
)

// WaitUntilIdle blocks the control goroutine until every registered idling
// resource is simultaneously observed idle, or fails with IdleTimeoutError.
func (c *Controller) WaitUntilIdle() error {
	if err := c.checkOnLoop(opWaitUntilIdle); err != nil {
		return err
	}
	return c.waitUntilIdle("")
}

// waitUntilIdle runs idle convergence on the control goroutine. token ties
// the wait's record to an enclosing injection; bare waits pass "".
//
// The algorithm (CP-3): drain once, then repeat activation passes. Each pass
// registers a notify-once callback on every proxy and counts it active; the
// wait inside a pass blocks on the control queue so that posted removals and
// new control work are processed. A pass in which every proxy reports idle
// synchronously, with nothing going active, is a stable simultaneous-idle
// observation and ends the wait. Resources may flap between passes; only the
// timeout bounds the total wait.
func (c *Controller) waitUntilIdle(token string) error {
	start := time.Now()
	timeout := c.IdleTimeout()

	// Resources that settled on their own leave work behind; take it first.
	c.control.Drain()

	proxies := c.reg.Sync()
	if len(proxies) == 0 {
		c.recordWait(WaitRecord{
			Token:   token,
			Seq:     c.seq.Next(),
			Kind:    WaitUntilIdleKind,
			Outcome: OutcomeOK,
			Elapsed: time.Since(start),
		})
		return nil
	}

	// active is owned by the control goroutine (CP-1). Callbacks firing on
	// other goroutines post their removal here instead of touching the map.
	active := make(map[string]struct{}, len(proxies))
	passes := 0

	for {
		passes++
		for _, p := range proxies {
			name := p.Name()
			active[name] = struct{}{}
			p.NotifyOnIdle(func() {
				if c.control.IsCurrent() {
					delete(active, name)
				} else {
					c.control.Post(func() { delete(active, name) })
				}
			})
		}

		// Nothing went active: every proxy was idle at registration, which
		// is the stable full-pass observation the wait is for.
		if len(active) == 0 {
			break
		}

		for len(active) > 0 {
			elapsed := time.Since(start)
			if elapsed >= timeout {
				stalled := make([]string, 0, len(active))
				for name := range active {
					stalled = append(stalled, name)
				}
				sort.Strings(stalled)

				c.recordWait(WaitRecord{
					Token:   token,
					Seq:     c.seq.Next(),
					Kind:    WaitUntilIdleKind,
					Passes:  passes,
					Outcome: OutcomeIdleTimeout,
					Stalled: stalled,
					Elapsed: elapsed,
				})
				slog.Error("idle convergence timed out",
					"timeout", timeout,
					"stalled", stalled,
					"passes", passes)
				return &IdleTimeoutError{Timeout: timeout, Stalled: stalled}
			}

			c.control.Poll(timeout - elapsed)
			c.control.Drain()
		}
	}

	elapsed := time.Since(start)
	c.recordWait(WaitRecord{
		Token:   token,
		Seq:     c.seq.Next(),
		Kind:    WaitUntilIdleKind,
		Passes:  passes,
		Outcome: OutcomeOK,
		Elapsed: elapsed,
	})
	slog.Debug("idle convergence complete",
		"resources", len(proxies),
		"passes", passes,
		"elapsed", elapsed)
	return nil
}
