package idling

import (
	"sync"

	"github.com/calmloop/settle/internal/looper"
)

// Proxy is the uniform notify-once capability over every idle-signal kind.
// The convergence engine only ever talks to proxies.
type Proxy interface {
	// Name identifies the underlying source in logs and timeout reports.
	Name() string

	// IsIdle reports the source's state right now.
	IsIdle() bool

	// NotifyOnIdle arranges for cb to run once the source is idle. If the
	// source is idle already, cb runs synchronously on the calling goroutine
	// before NotifyOnIdle returns. At most one callback is pending per proxy;
	// registering again replaces the previous one.
	//
	// cb may fire on any goroutine. Callers who mutate loop-owned state from
	// cb must post that mutation to the owning loop themselves.
	NotifyOnIdle(cb func())
}

// resourceProxy adapts a named Resource to the Proxy capability.
//
// The single callback slot is guarded by the proxy's own mutex. Checking
// IsIdle and storing the callback happen under one critical section, so an
// idle transition cannot slip between "not idle yet" and "callback stored":
// the transition callback takes the same mutex.
type resourceProxy struct {
	res Resource

	mu sync.Mutex
	cb func()
}

func newResourceProxy(res Resource) *resourceProxy {
	p := &resourceProxy{res: res}
	res.OnTransitionToIdle(p.transitionToIdle)
	return p
}

func (p *resourceProxy) Name() string {
	return p.res.Name()
}

func (p *resourceProxy) IsIdle() bool {
	return p.res.IsIdle()
}

func (p *resourceProxy) NotifyOnIdle(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.res.IsIdle() {
		p.cb = nil
		cb()
		return
	}
	p.cb = cb
}

func (p *resourceProxy) transitionToIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cb != nil {
		p.cb()
		p.cb = nil
	}
}

// loopProxy adapts a secondary message loop to the Proxy capability.
//
// A loop does not self-report idle transitions: it has to be pumped. A
// pending notification therefore spawns a worker that drives the loop to
// idle (looper.Loop.RunToIdle) and then fires the stored callback under the
// proxy mutex. Pumping never runs on the goroutine that registered the
// notification; that goroutine is the one waiting for convergence.
type loopProxy struct {
	loop  *looper.Loop
	spawn func(func())

	mu sync.Mutex
	cb func()
}

func newLoopProxy(loop *looper.Loop, spawn func(func())) *loopProxy {
	if spawn == nil {
		spawn = func(f func()) { go f() }
	}
	return &loopProxy{loop: loop, spawn: spawn}
}

func (p *loopProxy) Name() string {
	return p.loop.Name()
}

func (p *loopProxy) IsIdle() bool {
	return p.loop.Idle()
}

func (p *loopProxy) NotifyOnIdle(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loop.Idle() {
		p.cb = nil
		cb()
		return
	}
	p.cb = cb
	p.spawn(p.pump)
}

func (p *loopProxy) pump() {
	p.loop.RunToIdle()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cb != nil {
		p.cb()
		p.cb = nil
	}
}
