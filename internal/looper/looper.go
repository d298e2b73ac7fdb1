// Package looper provides the message loops that order all work in a
// simulated display: one control loop that the injection surface runs on,
// plus any number of secondary loops that are pumped to idleness from worker
// goroutines.
//
// A Loop is a thread-safe FIFO of tasks with a single-slot wake signal.
// Exactly one goroutine executes tasks at a time: either the permanently
// attached executor (control loop) or a transient pumper inside RunToIdle
// (secondary loop). IsCurrent answers "am I that goroutine right now", which
// is what callers use to keep loop-owned state single-writer.
package looper

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work queued on a Loop.
type Task func()

// Loop is a FIFO task queue with a designated executor.
//
// The queue is unbounded so that tasks running on the loop can freely post
// follow-up work without blocking. Posting is safe from any goroutine;
// Drain and Poll belong to the executor.
type Loop struct {
	name string

	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)

	// pumpMu serializes RunToIdle so at most one worker drives the loop.
	pumpMu  sync.Mutex
	pumping atomic.Bool

	// execGID is the goroutine allowed to execute tasks right now.
	// Permanent after Attach; transient during RunToIdle.
	execGID  atomic.Uint64
	attached atomic.Bool
}

// New creates an empty loop with the given name. The name appears in logs,
// traces, and timeout reports.
func New(name string) *Loop {
	return &Loop{
		name:   name,
		tasks:  make([]Task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Name returns the loop's name.
func (l *Loop) Name() string {
	return l.name
}

// Post adds a task to the back of the queue and wakes a blocked Poll.
// Safe from any goroutine. Returns false if the loop is closed (the task is
// dropped).
func (l *Loop) Post(t Task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	l.tasks = append(l.tasks, t)

	// Non-blocking send: one pending signal is enough, Drain takes everything.
	select {
	case l.signal <- struct{}{}:
	default:
	}

	return true
}

// take removes the task at the front of the queue.
func (l *Loop) take() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}

	t := l.tasks[0]
	l.tasks[0] = nil // Allow GC of the executed task
	l.tasks = l.tasks[1:]

	if len(l.tasks) == 0 {
		l.tasks = make([]Task, 0, 64) // Release the consumed backing array
	}

	return t, true
}

// Attach binds the calling goroutine as the loop's permanent executor.
// Panics if the loop already has one.
func (l *Loop) Attach() {
	if !l.attached.CompareAndSwap(false, true) {
		panic("looper: loop " + l.name + " already attached")
	}
	l.execGID.Store(currentGoroutineID())
}

// IsCurrent reports whether the calling goroutine is the loop's executor:
// the attached goroutine, or the pumping goroutine while RunToIdle runs.
func (l *Loop) IsCurrent() bool {
	return l.execGID.Load() == currentGoroutineID()
}

// Drain executes every task queued at the moment of each iteration until the
// queue is observed empty, and returns the number executed. Tasks posted by
// drained tasks are executed in the same call.
//
// CRITICAL: executor only. Posting goroutines never call Drain.
func (l *Loop) Drain() int {
	n := 0
	for {
		t, ok := l.take()
		if !ok {
			return n
		}
		t()
		n++
	}
}

// Poll blocks the executor until a task is posted, the loop is closed, or
// max elapses. Returns true if woken, false on timeout. A pending wake from
// an earlier Post may return immediately; callers drain afterwards either
// way, so a coalesced or stale signal costs one empty drain, never a lost
// task.
func (l *Loop) Poll(max time.Duration) bool {
	if max <= 0 {
		return false
	}

	timer := time.NewTimer(max)
	defer timer.Stop()

	select {
	case <-l.signal:
		return true
	case <-timer.C:
		return false
	}
}

// Idle reports whether the loop has nothing queued and no pump in flight.
func (l *Loop) Idle() bool {
	if l.pumping.Load() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) == 0
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// RunToIdle drives an unattached loop until its queue is empty, executing
// tasks on the calling goroutine, and returns the number executed.
// Concurrent pumps are serialized; IsCurrent is true inside tasks for the
// duration. Panics on an attached loop (its executor drains it instead).
func (l *Loop) RunToIdle() int {
	if l.attached.Load() {
		panic("looper: RunToIdle on attached loop " + l.name)
	}

	l.pumpMu.Lock()
	defer l.pumpMu.Unlock()

	l.pumping.Store(true)
	defer l.pumping.Store(false)

	l.execGID.Store(currentGoroutineID())
	defer l.execGID.Store(0)

	return l.Drain()
}

// Close marks the loop closed and wakes any blocked Poll. Queued tasks are
// kept and may still be drained; new posts are dropped. Idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
