package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/calmloop/settle/internal/driver"
	"github.com/calmloop/settle/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes the trace so a failure reads like a transcript of the run.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		buf.WriteString(FormatTrace(e.Trace))
	}

	return buf.String()
}

// FormatTrace renders trace events as indented transcript lines, deliveries
// nested under their injection.
func FormatTrace(trace []TraceEvent) string {
	var buf strings.Builder
	for _, ev := range trace {
		switch ev.Type {
		case EventInjection:
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", ev.Seq, ev.Kind, ev.Detail, ev.Outcome)
		case EventDelivery:
			if ev.Code != "" {
				fmt.Fprintf(&buf, "  [%d]   %s <- %s %s\n", ev.Seq, ev.Window, ev.Action, ev.Code)
			} else {
				fmt.Fprintf(&buf, "  [%d]   %s <- %s (%g,%g)\n", ev.Seq, ev.Window, ev.Action, ev.X, ev.Y)
			}
		case EventWait:
			fmt.Fprintf(&buf, "  [%d] wait %s -> %s (%d passes)\n", ev.Seq, ev.Kind, ev.Outcome, ev.Passes)
		}
	}
	return buf.String()
}

// AssertionContext carries what assertions need beyond the trace.
type AssertionContext struct {
	Journal *journal.Store
	Ctx     context.Context
}

// EvaluateAssertions applies every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertDelivered:
			err = assertDelivered(result.Trace, a)
		case AssertNotDelivered:
			err = assertNotDelivered(result.Trace, a)
		case AssertWaitResult:
			err = assertWaitResult(result.Trace, a)
		case AssertJournalCount:
			err = assertJournalCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// matchDelivery reports whether ev is a delivery matching the assertion's
// filters. Unset filters match anything.
func matchDelivery(ev TraceEvent, a Assertion) bool {
	if ev.Type != EventDelivery || ev.Window != a.Window {
		return false
	}
	if a.Action != "" && ev.Action != a.Action {
		return false
	}
	if a.Code != "" && ev.Code != a.Code {
		return false
	}
	if a.X != nil && ev.X != *a.X {
		return false
	}
	if a.Y != nil && ev.Y != *a.Y {
		return false
	}
	return true
}

// describeDelivery renders the assertion's delivery filters for messages.
func describeDelivery(a Assertion) string {
	parts := []string{fmt.Sprintf("delivery to %s", a.Window)}
	if a.Action != "" {
		parts = append(parts, "action "+a.Action)
	}
	if a.Code != "" {
		parts = append(parts, "code "+a.Code)
	}
	if a.X != nil {
		parts = append(parts, fmt.Sprintf("x=%g", *a.X))
	}
	if a.Y != nil {
		parts = append(parts, fmt.Sprintf("y=%g", *a.Y))
	}
	return strings.Join(parts, ", ")
}

// assertDelivered checks that a matching delivery appears in the trace.
func assertDelivered(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchDelivery(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertDelivered,
		Expected: describeDelivery(a),
		Actual:   "no matching delivery in trace",
		Trace:    trace,
	}
}

// assertNotDelivered checks that no matching delivery appears in the trace.
func assertNotDelivered(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchDelivery(ev, a) {
			return &AssertionError{
				Type:     AssertNotDelivered,
				Expected: "no " + describeDelivery(a),
				Actual:   fmt.Sprintf("delivered at seq %d: %s %s", ev.Seq, ev.Window, ev.Action),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertWaitResult checks that a wait with the given kind and outcome ran,
// with at least MinPasses convergence passes.
func assertWaitResult(trace []TraceEvent, a Assertion) error {
	kind := a.Kind
	if kind == "" {
		kind = driver.WaitUntilIdleKind
	}

	var seen []string
	for _, ev := range trace {
		if ev.Type != EventWait || ev.Kind != kind {
			continue
		}
		if ev.Outcome == a.Outcome && ev.Passes >= a.MinPasses {
			return nil
		}
		seen = append(seen, fmt.Sprintf("%s (%d passes)", ev.Outcome, ev.Passes))
	}

	want := fmt.Sprintf("a %s wait with outcome %s", kind, a.Outcome)
	if a.MinPasses > 0 {
		want += fmt.Sprintf(" and at least %d passes", a.MinPasses)
	}
	actual := "no such wait in trace"
	if len(seen) > 0 {
		actual = "waits seen: " + strings.Join(seen, ", ")
	}
	return &AssertionError{
		Type:     AssertWaitResult,
		Expected: want,
		Actual:   actual,
		Trace:    trace,
	}
}

// assertJournalCount checks an exact row count in the journal.
func assertJournalCount(actx *AssertionContext, a Assertion) error {
	var (
		count int
		err   error
		what  string
	)
	switch a.Of {
	case CountDeliveries:
		count, err = actx.Journal.CountDeliveries(actx.Ctx, a.Window)
		what = "deliveries"
		if a.Window != "" {
			what = "deliveries to " + a.Window
		}
	default:
		f := journal.Filter{Kind: a.Kind, Outcome: a.Outcome, Window: a.Window}
		count, err = actx.Journal.CountInjections(actx.Ctx, f)
		what = "injections"
		if a.Kind != "" {
			what = a.Kind + " injections"
		}
		if a.Outcome != "" {
			what += " with outcome " + a.Outcome
		}
		if a.Window != "" {
			what += " delivered to " + a.Window
		}
	}
	if err != nil {
		return fmt.Errorf("journal count: %w", err)
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}
