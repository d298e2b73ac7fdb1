package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmloop/settle/internal/driver"
	"github.com/calmloop/settle/internal/journal"
)

// deliveries extracts the delivery events from a trace, in sequence order.
func deliveries(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == EventDelivery {
			out = append(out, ev)
		}
	}
	return out
}

// waits extracts the wait events from a trace, in sequence order.
func waits(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == EventWait {
			out = append(out, ev)
		}
	}
	return out
}

func TestRun_TapDialog(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tap_dialog.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, driver.OutcomeOK, result.Steps[0].Outcome)
	assert.Equal(t, "tap @(100,100)", result.Steps[0].Step)

	// Down injection, pre-wait, two deliveries, post-wait; up injection,
	// pre-wait, one delivery, post-wait.
	require.Len(t, result.Trace, 9)

	made := deliveries(result.Trace)
	require.Len(t, made, 3)

	// The panel's outside notification precedes the dialog's consumption.
	assert.Equal(t, "panel", made[0].Window)
	assert.Equal(t, "outside", made[0].Action)
	assert.Equal(t, -100.0, made[0].X)
	assert.Equal(t, 100.0, made[0].Y)

	assert.Equal(t, "dialog", made[1].Window)
	assert.Equal(t, "down", made[1].Action)
	assert.Equal(t, 50.0, made[1].X)
	assert.Equal(t, 50.0, made[1].Y)

	// The up skips outside watchers; only the dialog sees it.
	assert.Equal(t, "dialog", made[2].Window)
	assert.Equal(t, "up", made[2].Action)
}

func TestRun_TypeText(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/type_text.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, `text "Hi"`, result.Steps[0].Step)

	var injections []TraceEvent
	for _, ev := range result.Trace {
		if ev.Type == EventInjection {
			injections = append(injections, ev)
		}
	}
	require.Len(t, injections, 1)
	assert.Equal(t, "text", injections[0].Kind)
	assert.Equal(t, "Hi", injections[0].Detail)
	assert.Equal(t, driver.OutcomeOK, injections[0].Outcome)

	// "Hi" translates to shift-held h, then bare i.
	made := deliveries(result.Trace)
	require.Len(t, made, 6)
	wantCodes := []string{"shift", "h", "h", "shift", "i", "i"}
	wantActions := []string{"down", "down", "up", "up", "down", "up"}
	for i, d := range made {
		assert.Equal(t, "editor", d.Window)
		assert.Equal(t, wantCodes[i], d.Code, "delivery %d code", i)
		assert.Equal(t, wantActions[i], d.Action, "delivery %d action", i)
	}
}

func TestRun_SettleWait(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/settle_wait.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// The wait spins until the timer settles the counter, so convergence
	// takes more than one pass.
	ws := waits(result.Trace)
	require.Len(t, ws, 1)
	assert.Equal(t, driver.WaitUntilIdleKind, ws[0].Kind)
	assert.Equal(t, driver.OutcomeOK, ws[0].Outcome)
	assert.GreaterOrEqual(t, ws[0].Passes, 2)
	assert.Empty(t, ws[0].Stalled)
}

func TestRun_StuckGate(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/stuck_gate.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	// The timeout is the expected outcome, so the scenario still passes.
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, driver.OutcomeIdleTimeout, result.Steps[1].Outcome)
	assert.Contains(t, result.Steps[1].Error, "still busy: anim")

	ws := waits(result.Trace)
	require.Len(t, ws, 1)
	assert.Equal(t, driver.OutcomeIdleTimeout, ws[0].Outcome)
	assert.Equal(t, []string{"anim"}, ws[0].Stalled)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "expect_mismatch",
		Description: "A tap on an idle scene cannot time out",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "solo",
		Steps: []Step{
			{Tap: &PointerArgs{X: 5, Y: 5}, Expect: driver.OutcomeIdleTimeout},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected outcome idle_timeout, got ok")

	// The step itself still ran and recorded its real outcome.
	require.Len(t, result.Steps, 1)
	assert.Equal(t, driver.OutcomeOK, result.Steps[0].Outcome)
}

func TestRun_UnknownResourceAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_resource",
		Description: "Busy on a resource the scene never declared",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "solo",
		Steps: []Step{
			{Busy: &ResourceArgs{Resource: "ghost"}},
		},
	}

	// Script errors abort the run rather than becoming step outcomes.
	result, err := Run(scenario)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), `unknown resource "ghost"`)
	assert.Contains(t, err.Error(), "step 0")
}

func TestRun_UnknownLoopAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_loop",
		Description: "Post to a loop the scene never declared",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "solo",
		Steps: []Step{
			{Post: &PostArgs{Loop: "ghost"}},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown loop "ghost"`)
}

func TestRun_SceneValidationError(t *testing.T) {
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "bad.cue")
	content := `scene: bad: {
	windows: [{name: "w", layer: "basement", frame: {width: 10, height: 10}}]
}`
	require.NoError(t, os.WriteFile(scenePath, []byte(content), 0644))

	scenario := &Scenario{
		Name:        "bad_scene",
		Description: "Scene with an unknown layer",
		Scene:       scenePath,
		Steps: []Step{
			{WaitIdle: &WaitIdleArgs{}},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[E100]")
	assert.Contains(t, err.Error(), "basement")
}

func TestRun_SceneWarningStillRuns(t *testing.T) {
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "warn.cue")
	content := `scene: warn: {
	windows: [{name: "w", layer: "base", frame: {width: 10, height: 10}}]
	started: ["ghost"]
}`
	require.NoError(t, os.WriteFile(scenePath, []byte(content), 0644))

	scenario := &Scenario{
		Name:        "warn_scene",
		Description: "Started app without a base window only warns",
		Scene:       scenePath,
		Steps: []Step{
			{WaitIdle: &WaitIdleArgs{}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_PostLoopPumpedDuringWait(t *testing.T) {
	scenario := &Scenario{
		Name:        "pumped_loop",
		Description: "Pending render tasks force an extra convergence pass",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "editor",
		Steps: []Step{
			{Post: &PostArgs{Loop: "render", Count: 2}},
			{WaitIdle: &WaitIdleArgs{}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	ws := waits(result.Trace)
	require.Len(t, ws, 1)
	assert.Equal(t, driver.OutcomeOK, ws[0].Outcome)
	assert.GreaterOrEqual(t, ws[0].Passes, 2, "draining the posted tasks takes a pass")
}

func TestRunWithJournal_PersistsRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	scenario := &Scenario{
		Name:        "persisted_tap",
		Description: "Records survive the run in a file-backed journal",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "solo",
		Steps: []Step{
			{Tap: &PointerArgs{X: 30, Y: 30}},
		},
	}

	result, err := RunWithJournal(scenario, dbPath)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// Reopen the journal after the run and read the records back.
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	n, err := j.CountInjections(ctx, journal.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d, err := j.CountDeliveries(ctx, "editor")
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	recs, err := j.ReadInjections(ctx, journal.Filter{Kind: driver.KindPointer})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "down @(30,30)", recs[0].Detail)
	assert.Equal(t, "up @(30,30)", recs[1].Detail)
}

func TestRun_StepsShareGestureDownTime(t *testing.T) {
	scenario := &Scenario{
		Name:        "drag",
		Description: "Down, move, up form one gesture",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "solo",
		Steps: []Step{
			{Down: &PointerArgs{X: 10, Y: 10}},
			{Move: &PointerArgs{X: 20, Y: 20}},
			{Up: &PointerArgs{X: 30, Y: 30}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	made := deliveries(result.Trace)
	require.Len(t, made, 3)
	assert.Equal(t, []string{"down", "move", "up"},
		[]string{made[0].Action, made[1].Action, made[2].Action})
}

func TestRun_TokenPrefixFlowsThrough(t *testing.T) {
	scenario := &Scenario{
		Name:        "prefixed",
		Description: "Token prefix from the scenario stamps every record",
		Scene:       "testdata/scenes/editor.cue",
		SceneName:   "solo",
		TokenPrefix: "run",
		Steps: []Step{
			{Tap: &PointerArgs{X: 1, Y: 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	for _, ev := range result.Trace {
		assert.Contains(t, ev.Token, "run-", fmt.Sprintf("event seq %d", ev.Seq))
	}
}
