package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calmloop/settle/internal/display"
	"github.com/calmloop/settle/internal/driver"
	"github.com/calmloop/settle/internal/event"
	"github.com/calmloop/settle/internal/idling"
	"github.com/calmloop/settle/internal/journal"
	"github.com/calmloop/settle/internal/looper"
	"github.com/calmloop/settle/internal/scene"
	"github.com/calmloop/settle/internal/testutil"
)

// Harness executes one scenario. Each run builds a fresh scene world: a
// control loop, a window stage, an idling registry with the scene's
// resources and loops, and a controller recording into the trace and the
// journal.
type Harness struct {
	control  *looper.Loop
	stage    *display.Stage
	registry *idling.Registry
	counters map[string]*idling.Counter
	gates    map[string]*idling.Gate
	loops    map[string]*looper.Loop
	ctrl     *driver.Controller
	trace    *traceRecorder
	timers   []*time.Timer

	// downAt is the down time of the open pointer gesture, reused by up
	// and move steps so a gesture shares one down time.
	downAt time.Duration
}

// Run executes a scenario against a fresh in-memory journal.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithJournal(scenario, ":memory:")
}

// RunWithJournal executes a scenario, appending records to the journal at
// dbPath. The calling goroutine becomes the control loop's executor for the
// duration of the run.
//
// Execution flow:
// 1. Load and validate the scene; warnings log, errors abort
// 2. Open the journal and build the scene world
// 3. Execute steps in order, checking each against its expected outcome
// 4. Evaluate assertions against the trace and journal
func RunWithJournal(scenario *Scenario, dbPath string) (*Result, error) {
	sc, err := scene.Load(scenario.Scene, scenario.SceneName)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	findings := scene.Validate(sc)
	if errs := scene.Errors(findings); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("scene %s: %s", sc.Name, strings.Join(msgs, "; "))
	}
	for _, w := range scene.Warnings(findings) {
		slog.Warn("scene warning",
			"scene", sc.Name,
			"code", w.Code,
			"field", w.Field,
			"message", w.Message)
	}

	j, err := journal.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	h := build(scenario, sc, j)
	defer h.shutdown()

	h.control.Attach()

	result := NewResult(scenario.Name)
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	result.Trace = h.trace.Events()

	actx := &AssertionContext{Journal: j, Ctx: context.Background()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// build assembles the scene world and the controller.
func build(scenario *Scenario, sc *scene.Scene, j *journal.Store) *Harness {
	h := &Harness{
		control:  looper.New("control"),
		stage:    display.NewStage(),
		registry: idling.NewRegistry(),
		counters: make(map[string]*idling.Counter),
		gates:    make(map[string]*idling.Gate),
		loops:    make(map[string]*looper.Loop),
		trace:    &traceRecorder{},
	}

	for _, w := range sc.Windows {
		view := display.NewSimView(w.Name, w.Frame.Width, w.Frame.Height)
		h.stage.AddWindow(view, w.Params())
	}
	for _, app := range sc.Started {
		h.stage.Start(app)
	}

	for _, r := range sc.Resources {
		switch r.Kind {
		case scene.KindCounter:
			c := idling.NewCounter(r.Name)
			h.counters[r.Name] = c
			h.registry.Register(c)
		case scene.KindGate:
			g := idling.NewGate(r.Name, r.Idle)
			h.gates[r.Name] = g
			h.registry.Register(g)
		}
	}
	for _, name := range sc.Loops {
		l := looper.New(name)
		h.loops[name] = l
		h.registry.RegisterLoop(l)
	}

	// Fixed tokens keep traces and goldens reproducible across runs.
	opts := []driver.Option{
		driver.WithRecorder(fanoutRecorder{h.trace, journal.NewRecorder(j)}),
		driver.WithTokens(testutil.NewFixedTokens(scenario.TokenPrefix)),
	}
	if scenario.IdleTimeout.Std() > 0 {
		opts = append(opts, driver.WithIdleTimeout(scenario.IdleTimeout.Std()))
	}
	h.ctrl = driver.New(h.control, h.stage, h.registry, opts...)

	return h
}

// shutdown stops pending settle timers and closes every loop.
func (h *Harness) shutdown() {
	for _, t := range h.timers {
		t.Stop()
	}
	for _, l := range h.loops {
		l.Close()
	}
	h.control.Close()
}

// executeStep runs one step and records its outcome. The returned error is
// a script error (unknown resource, closed loop) and aborts the run; driver
// failures become step outcomes instead.
func (h *Harness) executeStep(index int, step Step, result *Result) error {
	verb, _ := step.verb()

	var (
		desc string
		err  error
	)
	switch verb {
	case "tap":
		desc = fmt.Sprintf("tap @(%g,%g)", step.Tap.X, step.Tap.Y)
		err = h.tap(*step.Tap)
	case "down":
		desc = fmt.Sprintf("down @(%g,%g)", step.Down.X, step.Down.Y)
		err = h.pointer(event.PointerDown, *step.Down)
	case "up":
		desc = fmt.Sprintf("up @(%g,%g)", step.Up.X, step.Up.Y)
		err = h.pointer(event.PointerUp, *step.Up)
	case "move":
		desc = fmt.Sprintf("move @(%g,%g)", step.Move.X, step.Move.Y)
		err = h.pointer(event.PointerMove, *step.Move)
	case "key":
		desc = fmt.Sprintf("key %s", step.Key.Code)
		err = h.key(*step.Key)
	case "text":
		desc = fmt.Sprintf("text %q", *step.Text)
		err = h.ctrl.InjectText(*step.Text)
	case "wait_idle":
		desc = "wait_idle"
		err = h.waitIdle(*step.WaitIdle)
	case "wait_at_least":
		desc = fmt.Sprintf("wait_at_least %s", step.WaitAtLeast.For.Std())
		err = h.ctrl.WaitAtLeast(step.WaitAtLeast.For.Std())
	case "busy":
		desc = fmt.Sprintf("busy %s", step.Busy.Resource)
		if serr := h.setBusy(step.Busy.Resource); serr != nil {
			return serr
		}
	case "settle":
		desc = fmt.Sprintf("settle %s", step.Settle.Resource)
		if serr := h.settle(*step.Settle); serr != nil {
			return serr
		}
	case "post":
		loop := step.Post.Loop
		if loop == "" {
			loop = "control"
		}
		count := step.Post.Count
		if count == 0 {
			count = 1
		}
		desc = fmt.Sprintf("post %s x%d", loop, count)
		if serr := h.post(step.Post.Loop, count); serr != nil {
			return serr
		}
	}

	outcome := driver.OutcomeOf(err)
	sr := StepResult{Index: index, Step: desc, Outcome: outcome}
	if err != nil {
		sr.Error = err.Error()
	}
	result.Steps = append(result.Steps, sr)

	expected := step.Expect
	if expected == "" {
		expected = driver.OutcomeOK
	}
	if outcome != expected {
		result.AddError(fmt.Sprintf("step[%d] %s: expected outcome %s, got %s (%v)",
			index, desc, expected, outcome, err))
	}

	slog.Debug("step executed",
		"index", index,
		"step", desc,
		"outcome", outcome)
	return nil
}

// tap injects a pointer down then up at the same spot.
func (h *Harness) tap(p PointerArgs) error {
	if err := h.pointer(event.PointerDown, p); err != nil {
		return err
	}
	return h.pointer(event.PointerUp, p)
}

// pointer injects one pointer event, threading the gesture's down time.
func (h *Harness) pointer(action event.PointerAction, p PointerArgs) error {
	now := h.ctrl.Clock().Uptime()
	ev := event.Pointer{Action: action, X: p.X, Y: p.Y, DownTime: now, EventTime: now}
	switch action {
	case event.PointerDown:
		h.downAt = now
	case event.PointerUp:
		if h.downAt > 0 {
			ev.DownTime = h.downAt
		}
		h.downAt = 0
	default:
		if h.downAt > 0 {
			ev.DownTime = h.downAt
		}
	}
	return h.ctrl.InjectPointer(ev)
}

// key injects a key press: down then up of one code.
func (h *Harness) key(k KeyArgs) error {
	code, _ := event.CodeByName(k.Code)
	var meta event.Meta
	if k.Shift {
		meta |= event.MetaShift
	}

	now := h.ctrl.Clock().Uptime()
	down := event.Key{Action: event.KeyDown, Code: code, Meta: meta, DownTime: now, EventTime: now}
	if err := h.ctrl.InjectKey(down); err != nil {
		return err
	}

	up := down
	up.Action = event.KeyUp
	up.EventTime = h.ctrl.Clock().Uptime()
	return h.ctrl.InjectKey(up)
}

// waitIdle blocks until idle, honoring a per-step timeout override.
func (h *Harness) waitIdle(args WaitIdleArgs) error {
	if d := args.Timeout.Std(); d > 0 {
		prev := h.ctrl.IdleTimeout()
		h.ctrl.SetIdleTimeout(d)
		defer h.ctrl.SetIdleTimeout(prev)
	}
	return h.ctrl.WaitUntilIdle()
}

// setBusy marks a scene resource busy.
func (h *Harness) setBusy(name string) error {
	if c, ok := h.counters[name]; ok {
		c.Increment()
		return nil
	}
	if g, ok := h.gates[name]; ok {
		g.SetIdle(false)
		return nil
	}
	return fmt.Errorf("unknown resource %q", name)
}

// settle restores a resource to idle, now or after a delay.
func (h *Harness) settle(args SettleArgs) error {
	restore, err := h.restoreFunc(args.Resource)
	if err != nil {
		return err
	}
	if d := args.After.Std(); d > 0 {
		h.timers = append(h.timers, time.AfterFunc(d, restore))
		return nil
	}
	restore()
	return nil
}

func (h *Harness) restoreFunc(name string) (func(), error) {
	if c, ok := h.counters[name]; ok {
		return c.Decrement, nil
	}
	if g, ok := h.gates[name]; ok {
		return func() { g.SetIdle(true) }, nil
	}
	return nil, fmt.Errorf("unknown resource %q", name)
}

// post queues no-op tasks on the control loop or a named scene loop.
func (h *Harness) post(loop string, count int) error {
	l := h.control
	if loop != "" {
		var ok bool
		l, ok = h.loops[loop]
		if !ok {
			return fmt.Errorf("unknown loop %q", loop)
		}
	}
	for i := 0; i < count; i++ {
		if !l.Post(func() {}) {
			return fmt.Errorf("loop %q is closed", l.Name())
		}
	}
	return nil
}
