package idling

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmloop/settle/internal/looper"
)

func TestResourceProxy_IdleAtRegistration_FiresSynchronously(t *testing.T) {
	gate := NewGate("db", true)
	p := newResourceProxy(gate)

	fired := false
	p.NotifyOnIdle(func() { fired = true })

	assert.True(t, fired, "idle resource fires before NotifyOnIdle returns")
	assert.Nil(t, p.cb, "no callback remains stored")
}

func TestResourceProxy_BusyThenTransition(t *testing.T) {
	gate := NewGate("db", false)
	p := newResourceProxy(gate)

	fired := 0
	p.NotifyOnIdle(func() { fired++ })
	assert.Equal(t, 0, fired, "busy resource stores the callback")

	gate.SetIdle(true)
	assert.Equal(t, 1, fired, "transition fires the stored callback")

	gate.SetIdle(false)
	gate.SetIdle(true)
	assert.Equal(t, 1, fired, "a fired callback is cleared, not replayed")
}

func TestResourceProxy_TransitionWithoutRegistration_IsQuiet(t *testing.T) {
	gate := NewGate("db", false)
	newResourceProxy(gate)

	assert.NotPanics(t, func() { gate.SetIdle(true) })
}

func TestResourceProxy_CounterEndToEnd(t *testing.T) {
	c := NewCounter("uploads")
	p := newResourceProxy(c)

	c.Increment()
	c.Increment()
	require.False(t, p.IsIdle())

	fired := make(chan struct{})
	p.NotifyOnIdle(func() { close(fired) })

	c.Decrement()
	select {
	case <-fired:
		t.Fatal("callback fired before the count reached zero")
	default:
	}

	c.Decrement()
	select {
	case <-fired:
	default:
		t.Fatal("callback did not fire on the falling edge to zero")
	}
}

func TestLoopProxy_IdleLoop_FiresSynchronously_NeverSpawns(t *testing.T) {
	loop := looper.New("render")

	spawned := 0
	p := newLoopProxy(loop, func(f func()) {
		spawned++
		go f()
	})

	fired := false
	p.NotifyOnIdle(func() { fired = true })

	assert.True(t, fired, "idle loop fires before NotifyOnIdle returns")
	assert.Equal(t, 0, spawned, "no worker is spawned for an idle loop")
}

func TestLoopProxy_BusyLoop_PumpedOnWorker(t *testing.T) {
	loop := looper.New("render")

	ran := 0
	for i := 0; i < 3; i++ {
		loop.Post(func() { ran++ })
	}

	var workers sync.WaitGroup
	p := newLoopProxy(loop, func(f func()) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			f()
		}()
	})

	fired := make(chan struct{})
	p.NotifyOnIdle(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("pump never drove the loop to idle")
	}
	workers.Wait()

	assert.Equal(t, 3, ran, "pump executed the queued tasks")
	assert.True(t, loop.Idle())
}

func TestLoopProxy_CallbackNotOnRegisteringGoroutine(t *testing.T) {
	loop := looper.New("render")
	loop.Post(func() { time.Sleep(5 * time.Millisecond) })

	p := newLoopProxy(loop, nil)

	registering := make(chan struct{})
	fired := make(chan bool, 1)
	p.NotifyOnIdle(func() {
		select {
		case <-registering:
			fired <- true
		default:
			fired <- false
		}
	})
	close(registering) // NotifyOnIdle returned before the callback ran

	require.True(t, <-fired, "busy-loop callback must fire after NotifyOnIdle returns, on the pump goroutine")
}
