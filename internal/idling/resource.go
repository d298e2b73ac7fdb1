// Package idling tracks the busy/idle signal sources a simulated display
// waits on: user-registered named resources, secondary message loops, the
// proxies that give both a uniform notify-once capability, and the registry
// that reconciles the live proxy set between waits.
package idling

import "sync"

// Resource is an externally registered busy/idle signal source.
//
// Implementations must be comparable (in practice, pointer receivers): the
// registry keeps a proxy across reconciliations only while the instance
// registered under a name is identity-equal to the one the proxy wraps.
type Resource interface {
	// Name identifies the resource. Registration is de-duplicated by name;
	// the first registration wins.
	Name() string

	// IsIdle reports the resource's state right now, without blocking.
	IsIdle() bool

	// OnTransitionToIdle registers the callback invoked whenever the
	// resource transitions from busy to idle. A later registration replaces
	// an earlier one.
	OnTransitionToIdle(func())
}

// Counter is a counting Resource: busy while the count is above zero, idle
// at exactly zero. The falling edge to zero fires the transition callback.
type Counter struct {
	name string

	mu     sync.Mutex
	count  int
	onIdle func()
}

// NewCounter creates an idle counter (count zero).
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Name implements Resource.
func (c *Counter) Name() string {
	return c.name
}

// IsIdle implements Resource.
func (c *Counter) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count == 0
}

// OnTransitionToIdle implements Resource.
func (c *Counter) OnTransitionToIdle(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onIdle = f
}

// Increment marks one more unit of work in flight.
func (c *Counter) Increment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

// Decrement retires one unit of work. Reaching zero fires the transition
// callback. Panics if the count would go negative.
func (c *Counter) Decrement() {
	c.mu.Lock()
	c.count--
	if c.count < 0 {
		c.mu.Unlock()
		panic("idling: counter " + c.name + " decremented below zero")
	}
	idle := c.count == 0
	f := c.onIdle
	c.mu.Unlock()

	// Invoked outside the counter lock: the callback takes the proxy lock,
	// and the proxy queries IsIdle under it, which takes this lock.
	if idle && f != nil {
		f()
	}
}

// Count returns the current in-flight count.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Gate is a manually latched Resource: busy or idle exactly as told.
type Gate struct {
	name string

	mu     sync.Mutex
	idle   bool
	onIdle func()
}

// NewGate creates a gate in the given initial state.
func NewGate(name string, idle bool) *Gate {
	return &Gate{name: name, idle: idle}
}

// Name implements Resource.
func (g *Gate) Name() string {
	return g.name
}

// IsIdle implements Resource.
func (g *Gate) IsIdle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idle
}

// OnTransitionToIdle implements Resource.
func (g *Gate) OnTransitionToIdle(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onIdle = f
}

// SetIdle latches the gate. A busy-to-idle edge fires the transition
// callback.
func (g *Gate) SetIdle(idle bool) {
	g.mu.Lock()
	edge := idle && !g.idle
	g.idle = idle
	f := g.onIdle
	g.mu.Unlock()

	if edge && f != nil {
		f()
	}
}
