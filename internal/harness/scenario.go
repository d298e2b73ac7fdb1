package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calmloop/settle/internal/driver"
	"github.com/calmloop/settle/internal/event"
)

// Scenario defines one scripted input run: the scene to build, the input
// steps to drive through the controller, and the assertions to apply to the
// resulting trace and journal.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Scene is the path to the CUE scene file, relative to the scenario
	// file location once resolved by the loader.
	Scene string `yaml:"scene"`

	// SceneName selects a scene from the file. Optional when the file
	// defines exactly one.
	SceneName string `yaml:"scene_name,omitempty"`

	// TokenPrefix fixes the injection token prefix for deterministic
	// golden file comparison. Defaults to "tok".
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	// IdleTimeout overrides the controller's idle timeout for the whole
	// run. Zero keeps the default.
	IdleTimeout Duration `yaml:"idle_timeout,omitempty"`

	// Steps is the input script, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and journal after the script runs.
	// Supported types: delivered, not_delivered, wait_result, journal_count.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one script action. Exactly one of the verb fields must be set.
// Expect names the outcome the step must produce; empty means ok.
type Step struct {
	// Tap injects a pointer down then up at the same spot.
	Tap *PointerArgs `yaml:"tap,omitempty"`

	// Down, Up, and Move inject a single pointer event each. Up and Move
	// reuse the down time of the open gesture.
	Down *PointerArgs `yaml:"down,omitempty"`
	Up   *PointerArgs `yaml:"up,omitempty"`
	Move *PointerArgs `yaml:"move,omitempty"`

	// Key injects a key press: down then up of one code.
	Key *KeyArgs `yaml:"key,omitempty"`

	// Text types a string through the key map.
	Text *string `yaml:"text,omitempty"`

	// WaitIdle blocks until every registered resource reports idle.
	// Use an empty mapping to take the defaults: "wait_idle: {}".
	WaitIdle *WaitIdleArgs `yaml:"wait_idle,omitempty"`

	// WaitAtLeast blocks for a fixed duration while servicing the loop.
	WaitAtLeast *WaitArgs `yaml:"wait_at_least,omitempty"`

	// Busy marks a scene resource busy; Settle restores it, optionally
	// after a delay, so a following wait has something to wait out.
	Busy   *ResourceArgs `yaml:"busy,omitempty"`
	Settle *SettleArgs   `yaml:"settle,omitempty"`

	// Post queues no-op tasks on the control loop or a named scene loop.
	Post *PostArgs `yaml:"post,omitempty"`

	// Expect is the required step outcome: ok, precondition, idle_timeout,
	// translation, or rejected. Empty means ok.
	Expect string `yaml:"expect,omitempty"`
}

// PointerArgs positions a pointer event in display coordinates.
type PointerArgs struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// KeyArgs names the key to press.
type KeyArgs struct {
	// Code is the key code name, e.g. "a", "enter", "shift".
	Code string `yaml:"code"`

	// Shift holds the shift meta state down for the press.
	Shift bool `yaml:"shift,omitempty"`
}

// WaitIdleArgs tunes a wait_idle step.
type WaitIdleArgs struct {
	// Timeout overrides the controller's idle timeout for this wait only.
	Timeout Duration `yaml:"timeout,omitempty"`
}

// WaitArgs gives a wait_at_least step its duration.
type WaitArgs struct {
	For Duration `yaml:"for"`
}

// ResourceArgs names a scene resource.
type ResourceArgs struct {
	Resource string `yaml:"resource"`
}

// SettleArgs restores a resource to idle.
type SettleArgs struct {
	Resource string `yaml:"resource"`

	// After delays the restore, firing it from a timer while a later wait
	// is blocked. Zero restores immediately.
	After Duration `yaml:"after,omitempty"`
}

// PostArgs queues tasks on a loop.
type PostArgs struct {
	// Loop names a scene loop. Empty posts to the control loop.
	Loop string `yaml:"loop,omitempty"`

	// Count is the number of tasks to post. Zero means one.
	Count int `yaml:"count,omitempty"`
}

// Assertion validates the trace or journal after a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "delivered": a matching delivery appears in the trace
	// - "not_delivered": no matching delivery appears in the trace
	// - "wait_result": a wait with the given kind/outcome appears
	// - "journal_count": the journal holds exactly Count matching rows
	Type string `yaml:"type"`

	// Window is the target window (delivered, not_delivered, journal_count).
	Window string `yaml:"window,omitempty"`

	// Action matches the delivered action name, e.g. "down", "outside".
	Action string `yaml:"action,omitempty"`

	// Code matches the delivered key code.
	Code string `yaml:"code,omitempty"`

	// X and Y match window-local delivery coordinates when set.
	X *float64 `yaml:"x,omitempty"`
	Y *float64 `yaml:"y,omitempty"`

	// Kind filters wait_result by wait kind (until_idle, at_least) and
	// journal_count by injection kind (pointer, key, text).
	Kind string `yaml:"kind,omitempty"`

	// Outcome filters wait_result and journal_count rows.
	Outcome string `yaml:"outcome,omitempty"`

	// MinPasses requires a wait_result to have run at least this many
	// convergence passes.
	MinPasses int `yaml:"min_passes,omitempty"`

	// Of selects what journal_count counts: "injections" (default) or
	// "deliveries".
	Of string `yaml:"of,omitempty"`

	// Count is the exact row count for journal_count.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDelivered    = "delivered"
	AssertNotDelivered = "not_delivered"
	AssertWaitResult   = "wait_result"
	AssertJournalCount = "journal_count"
)

// Count targets for journal_count.
const (
	CountInjections = "injections"
	CountDeliveries = "deliveries"
)

// Duration wraps time.Duration so scripts can write "250ms" or "2s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"250ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields. The scene path is
// resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if scenario.Scene != "" && !filepath.IsAbs(scenario.Scene) {
		scenario.Scene = filepath.Join(filepath.Dir(path), scenario.Scene)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// verb returns the step's action name and how many verb fields are set.
func (s *Step) verb() (string, int) {
	name, n := "", 0
	mark := func(v string, set bool) {
		if set {
			name = v
			n++
		}
	}
	mark("tap", s.Tap != nil)
	mark("down", s.Down != nil)
	mark("up", s.Up != nil)
	mark("move", s.Move != nil)
	mark("key", s.Key != nil)
	mark("text", s.Text != nil)
	mark("wait_idle", s.WaitIdle != nil)
	mark("wait_at_least", s.WaitAtLeast != nil)
	mark("busy", s.Busy != nil)
	mark("settle", s.Settle != nil)
	mark("post", s.Post != nil)
	return name, n
}

var validOutcomes = map[string]bool{
	driver.OutcomeOK:           true,
	driver.OutcomePrecondition: true,
	driver.OutcomeIdleTimeout:  true,
	driver.OutcomeTranslation:  true,
	driver.OutcomeRejected:     true,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Scene == "" {
		return fmt.Errorf("scene is required")
	}
	if _, err := os.Stat(s.Scene); os.IsNotExist(err) {
		return fmt.Errorf("scene file not found: %s", s.Scene)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step.
func validateStep(index int, s *Step) error {
	name, n := s.verb()
	if n == 0 {
		return fmt.Errorf("steps[%d]: step must name an action", index)
	}
	if n > 1 {
		return fmt.Errorf("steps[%d]: step names %d actions, want one", index, n)
	}

	if s.Expect != "" && !validOutcomes[s.Expect] {
		return fmt.Errorf("steps[%d]: unknown expected outcome %q", index, s.Expect)
	}

	switch name {
	case "key":
		if s.Key.Code == "" {
			return fmt.Errorf("steps[%d]: key code is required", index)
		}
		if _, ok := event.CodeByName(s.Key.Code); !ok {
			return fmt.Errorf("steps[%d]: unknown key code %q", index, s.Key.Code)
		}
	case "wait_at_least":
		if s.WaitAtLeast.For.Std() <= 0 {
			return fmt.Errorf("steps[%d]: wait_at_least needs a positive duration", index)
		}
	case "busy":
		if s.Busy.Resource == "" {
			return fmt.Errorf("steps[%d]: busy resource is required", index)
		}
	case "settle":
		if s.Settle.Resource == "" {
			return fmt.Errorf("steps[%d]: settle resource is required", index)
		}
	case "post":
		if s.Post.Count < 0 {
			return fmt.Errorf("steps[%d]: post count must be non-negative", index)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDelivered, AssertNotDelivered:
		if a.Window == "" {
			return fmt.Errorf("assertions[%d]: window is required for %s", index, a.Type)
		}
	case AssertWaitResult:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for wait_result", index)
		}
		if !validOutcomes[a.Outcome] {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
		if a.Kind != "" && a.Kind != driver.WaitUntilIdleKind && a.Kind != driver.WaitAtLeastKind {
			return fmt.Errorf("assertions[%d]: unknown wait kind %q", index, a.Kind)
		}
		if a.MinPasses < 0 {
			return fmt.Errorf("assertions[%d]: min_passes must be non-negative", index)
		}
	case AssertJournalCount:
		switch a.Of {
		case "", CountInjections, CountDeliveries:
		default:
			return fmt.Errorf("assertions[%d]: unknown count target %q", index, a.Of)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
		if a.Outcome != "" && !validOutcomes[a.Outcome] {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
