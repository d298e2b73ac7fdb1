package driver

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmloop/settle/internal/display"
	"github.com/calmloop/settle/internal/idling"
	"github.com/calmloop/settle/internal/looper"
	"github.com/calmloop/settle/internal/testutil"
)

// captureRecorder keeps every record handed to it, in arrival order.
type captureRecorder struct {
	mu         sync.Mutex
	injections []InjectionRecord
	waits      []WaitRecord
}

func (r *captureRecorder) RecordInjection(rec InjectionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injections = append(r.injections, rec)
}

func (r *captureRecorder) RecordWait(rec WaitRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, rec)
}

func (r *captureRecorder) Injections() []InjectionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InjectionRecord, len(r.injections))
	copy(out, r.injections)
	return out
}

func (r *captureRecorder) Waits() []WaitRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WaitRecord, len(r.waits))
	copy(out, r.waits)
	return out
}

// testRig is a controller whose control loop is attached to the test
// goroutine, over a stage with one started full-screen window.
type testRig struct {
	control *looper.Loop
	stage   *display.Stage
	view    *display.SimView
	reg     *idling.Registry
	rec     *captureRecorder
	c       *Controller
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()

	rig := &testRig{
		control: looper.New("control"),
		stage:   display.NewStage(),
		view:    display.NewSimView("editor", 800, 600),
		reg:     idling.NewRegistry(),
		rec:     &captureRecorder{},
	}
	rig.control.Attach()
	rig.stage.AddWindow(rig.view, display.Params{Layer: display.LayerBase, App: "editor"})
	rig.stage.Start("editor")

	opts = append([]Option{
		WithRecorder(rig.rec),
		WithTokens(testutil.NewFixedTokens("tok")),
	}, opts...)
	rig.c = New(rig.control, rig.stage, rig.reg, opts...)
	return rig
}

func TestController_WaitUntilIdle_NoResources(t *testing.T) {
	rig := newTestRig(t)

	ran := false
	rig.control.Post(func() { ran = true })

	require.NoError(t, rig.c.WaitUntilIdle())
	assert.True(t, ran, "pending control work runs during the wait")

	waits := rig.rec.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, WaitUntilIdleKind, waits[0].Kind)
	assert.Equal(t, OutcomeOK, waits[0].Outcome)
	assert.Empty(t, waits[0].Token, "a bare wait carries no injection token")
}

func TestController_WaitUntilIdle_AllResourcesIdle(t *testing.T) {
	rig := newTestRig(t)
	rig.reg.Register(idling.NewGate("net", true))
	rig.reg.Register(idling.NewCounter("jobs"))

	require.NoError(t, rig.c.WaitUntilIdle())

	waits := rig.rec.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, 1, waits[0].Passes, "already-idle resources settle in a single pass")
}

func TestController_WaitUntilIdle_BlocksUntilResourceSettles(t *testing.T) {
	rig := newTestRig(t, WithIdleTimeout(2*time.Second))
	gate := idling.NewGate("anim", false)
	rig.reg.Register(gate)

	timer := time.AfterFunc(30*time.Millisecond, func() { gate.SetIdle(true) })
	defer timer.Stop()

	start := time.Now()
	err := rig.c.WaitUntilIdle()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	waits := rig.rec.Waits()
	require.Len(t, waits, 1)
	assert.GreaterOrEqual(t, waits[0].Passes, 2, "settling after the first pass forces another")
}

func TestController_WaitUntilIdle_TimeoutListsStalled(t *testing.T) {
	rig := newTestRig(t, WithIdleTimeout(80*time.Millisecond))
	rig.reg.Register(idling.NewGate("stuck-b", false))
	rig.reg.Register(idling.NewGate("calm", true))
	rig.reg.Register(idling.NewGate("stuck-a", false))

	start := time.Now()
	err := rig.c.WaitUntilIdle()
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *IdleTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 80*time.Millisecond, timeoutErr.Timeout)
	assert.Equal(t, []string{"stuck-a", "stuck-b"}, timeoutErr.Stalled,
		"stalled names are sorted and settled resources are absent")
	assert.ErrorContains(t, err, "still busy: stuck-a, stuck-b")

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	waits := rig.rec.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, OutcomeIdleTimeout, waits[0].Outcome)
	assert.Equal(t, []string{"stuck-a", "stuck-b"}, waits[0].Stalled)
}

func TestController_WaitUntilIdle_PumpsRegisteredLoop(t *testing.T) {
	rig := newTestRig(t, WithIdleTimeout(2*time.Second))
	worker := looper.New("worker")
	rig.reg.RegisterLoop(worker)

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		worker.Post(func() { ran.Add(1) })
	}

	require.NoError(t, rig.c.WaitUntilIdle())
	assert.Equal(t, int32(3), ran.Load(), "queued worker tasks run during convergence")
	assert.True(t, worker.Idle())
}

func TestController_WaitUntilIdle_ReconvergesAfterFlap(t *testing.T) {
	rig := newTestRig(t, WithIdleTimeout(2*time.Second))
	gate := idling.NewGate("net", false)
	rig.reg.Register(gate)

	// The gate settles, immediately goes busy again, then settles for good.
	flap := time.AfterFunc(15*time.Millisecond, func() {
		gate.SetIdle(true)
		gate.SetIdle(false)
	})
	defer flap.Stop()
	settle := time.AfterFunc(60*time.Millisecond, func() { gate.SetIdle(true) })
	defer settle.Stop()

	require.NoError(t, rig.c.WaitUntilIdle())

	waits := rig.rec.Waits()
	require.Len(t, waits, 1)
	assert.GreaterOrEqual(t, waits[0].Passes, 2, "a resource going busy again forces another pass")
}

func TestController_WaitUntilIdle_OffControlGoroutine(t *testing.T) {
	rig := newTestRig(t)

	errCh := make(chan error, 1)
	go func() { errCh <- rig.c.WaitUntilIdle() }()
	err := <-errCh

	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.ErrorContains(t, err, "not on the control loop")
	assert.Empty(t, rig.rec.Waits(), "precondition failures are not recorded")
}

func TestController_WaitAtLeast_BlocksForDuration(t *testing.T) {
	rig := newTestRig(t)

	var posted atomic.Bool
	timer := time.AfterFunc(20*time.Millisecond, func() {
		rig.control.Post(func() { posted.Store(true) })
	})
	defer timer.Stop()

	start := time.Now()
	require.NoError(t, rig.c.WaitAtLeast(80*time.Millisecond))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.True(t, posted.Load(), "work posted mid-wait runs before the wait returns")

	waits := rig.rec.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, WaitAtLeastKind, waits[0].Kind)
	assert.Equal(t, OutcomeOK, waits[0].Outcome)
}

func TestController_WaitAtLeast_OffControlGoroutine(t *testing.T) {
	rig := newTestRig(t)

	errCh := make(chan error, 1)
	go func() { errCh <- rig.c.WaitAtLeast(time.Millisecond) }()

	assert.True(t, IsPrecondition(<-errCh))
}

func TestController_SetIdleTimeout(t *testing.T) {
	rig := newTestRig(t)
	assert.Equal(t, DefaultIdleTimeout, rig.c.IdleTimeout())

	rig.c.SetIdleTimeout(90 * time.Millisecond)
	assert.Equal(t, 90*time.Millisecond, rig.c.IdleTimeout())

	rig.reg.Register(idling.NewGate("stuck", false))
	start := time.Now()
	err := rig.c.WaitUntilIdle()

	require.Error(t, err)
	assert.True(t, IsIdleTimeout(err))
	assert.Less(t, time.Since(start), 5*time.Second, "the reconfigured timeout takes effect")
}
