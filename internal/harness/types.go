package harness

import (
	"sort"
	"sync"

	"github.com/calmloop/settle/internal/driver"
)

// Trace event types.
const (
	EventInjection = "injection"
	EventDelivery  = "delivery"
	EventWait      = "wait"
)

// TraceEvent is one recorded driver operation, flattened for the trace.
// Injections, their deliveries, and waits interleave in sequence order,
// reconstructing the order things happened on the control loop. Only
// deterministic fields appear; elapsed times stay out so traces compare
// stably across runs.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Type    string   `json:"type"`
	Token   string   `json:"token,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Error   string   `json:"error,omitempty"`
	Window  string   `json:"window,omitempty"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code,omitempty"`
	X       float64  `json:"x,omitempty"`
	Y       float64  `json:"y,omitempty"`
	Passes  int      `json:"passes,omitempty"`
	Stalled []string `json:"stalled,omitempty"`
}

// StepResult is the outcome of one script step.
type StepResult struct {
	Index   int    `json:"index"`
	Step    string `json:"step"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the executed scenario's name.
	Scenario string `json:"scenario"`

	// Pass indicates overall success: every step produced its expected
	// outcome and every assertion held.
	Pass bool `json:"pass"`

	// Steps records each step's outcome in order.
	Steps []StepResult `json:"steps"`

	// Trace contains every injection, delivery, and wait in sequence
	// order. Used for assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Steps:    []StepResult{},
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// traceRecorder collects driver records as flattened trace events. Records
// arrive on the control goroutine, but settle timers can overlap a read in
// tests, so access stays locked.
type traceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (t *traceRecorder) RecordInjection(rec driver.InjectionRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TraceEvent{
		Seq:     rec.Seq,
		Type:    EventInjection,
		Token:   rec.Token,
		Kind:    rec.Kind,
		Detail:  rec.Detail,
		Outcome: rec.Outcome,
		Error:   rec.Error,
	})
	for _, d := range rec.Deliveries {
		t.events = append(t.events, TraceEvent{
			Seq:    d.Seq,
			Type:   EventDelivery,
			Token:  d.Token,
			Window: d.Window,
			Action: d.Action,
			Code:   d.Code,
			X:      d.X,
			Y:      d.Y,
		})
	}
}

func (t *traceRecorder) RecordWait(rec driver.WaitRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TraceEvent{
		Seq:     rec.Seq,
		Type:    EventWait,
		Token:   rec.Token,
		Kind:    rec.Kind,
		Outcome: rec.Outcome,
		Passes:  rec.Passes,
		Stalled: rec.Stalled,
	})
}

// Events returns the collected events in sequence order. Injection records
// land after their post-injection wait, so a sort puts the trace back in
// the order the sequence numbers were issued.
func (t *traceRecorder) Events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// fanoutRecorder tees driver records to several recorders, letting a run
// feed the trace and the journal from one controller.
type fanoutRecorder []driver.Recorder

func (f fanoutRecorder) RecordInjection(rec driver.InjectionRecord) {
	for _, r := range f {
		r.RecordInjection(rec)
	}
}

func (f fanoutRecorder) RecordWait(rec driver.WaitRecord) {
	for _, r := range f {
		r.RecordWait(rec)
	}
}
