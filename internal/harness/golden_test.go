package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_GoldenTap(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/golden_tap.yaml")
	require.NoError(t, err)

	// Regenerate after intentional trace changes with:
	//   go test ./internal/harness -run TestRunWithGolden_GoldenTap -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_TapDialog(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tap_dialog.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/golden_tap.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	// The comparison works on an already-executed result too.
	err = AssertGolden(t, "golden_tap", result)
	require.NoError(t, err)
}

func TestTraceSnapshot_StableSerialization(t *testing.T) {
	snapshot := TraceSnapshot{
		Scenario: "stable",
		Trace: []TraceEvent{
			{Seq: 1, Type: EventInjection, Token: "tok-0001", Kind: "pointer", Detail: "down @(60,40)", Outcome: "ok"},
			{Seq: 2, Type: EventWait, Token: "tok-0001", Kind: "until_idle", Outcome: "ok"},
			{Seq: 3, Type: EventDelivery, Token: "tok-0001", Window: "editor", Action: "down", X: 60, Y: 40},
		},
	}

	json1, err := json.MarshalIndent(snapshot, "", "  ")
	require.NoError(t, err)
	json2, err := json.MarshalIndent(snapshot, "", "  ")
	require.NoError(t, err)
	require.Equal(t, json1, json2, "trace serialization must be deterministic")

	jsonStr := string(json1)
	assert.Contains(t, jsonStr, `"scenario": "stable"`)
	assert.Contains(t, jsonStr, `"detail": "down @(60,40)"`)

	// A wait that never ran an activation pass omits the passes field
	// entirely; goldens rely on that.
	assert.NotContains(t, jsonStr, "passes")
	// Integral coordinates serialize without a decimal point.
	assert.Contains(t, jsonStr, `"x": 60`)
	assert.NotContains(t, jsonStr, "60.0")
}

func TestTraceSnapshot_FieldOrder(t *testing.T) {
	snapshot := TraceSnapshot{
		Scenario: "order",
		Trace: []TraceEvent{
			{Seq: 1, Type: EventInjection, Token: "t", Kind: "pointer", Detail: "d", Outcome: "ok"},
		},
	}

	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	// Struct field order is the serialization contract for goldens.
	want := `{"scenario":"order","trace":[{"seq":1,"type":"injection","token":"t","kind":"pointer","detail":"d","outcome":"ok"}]}`
	assert.Equal(t, want, string(data))
}
