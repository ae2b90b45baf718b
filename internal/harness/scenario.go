package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a ledger scenario: a starting state, a list of user
// actions, and assertions on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the starting ledger state. Nil means the default state
	// (xp 0, coins 50).
	Initial *Totals `yaml:"initial,omitempty"`

	// Session signs the ledger in against a scripted remote ledger, so
	// xp and coin deltas are synced.
	Session bool `yaml:"session,omitempty"`

	// Remote is the scripted remote ledger's starting totals.
	Remote *Totals `yaml:"remote,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Totals is an xp/coins pair.
type Totals struct {
	XP    int `yaml:"xp"`
	Coins int `yaml:"coins"`
}

// Step is one user action.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Args are the action's arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect checks the action's outcome. Keys: ok (bool), error (string).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionToggle     = "toggle"
	ActionBuy        = "buy"
	ActionAddXP      = "add_xp"
	ActionAddCoins   = "add_coins"
	ActionSpend      = "spend"
	ActionAddTask    = "add_task"
	ActionPull       = "pull"
	ActionFailRemote = "fail_remote"
)

// requiredArgs lists the mandatory args per action.
var requiredArgs = map[string][]string{
	ActionToggle:     {"id"},
	ActionBuy:        {"item", "price"},
	ActionAddXP:      {"amount"},
	ActionAddCoins:   {"amount"},
	ActionSpend:      {"amount"},
	ActionAddTask:    {"id"},
	ActionPull:       nil,
	ActionFailRemote: nil,
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with matching fields appears
	// - "trace_order": events appear in order
	// - "trace_count": an event appears exactly N times
	// - "request_count": exactly N remote requests were sent
	// - "final_state": flattened state matches expect
	Type string `yaml:"type"`

	// Event is the event name (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Fields are expected event fields, subset match (trace_contains).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count, request_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected state values, subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRequestCount  = "request_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarioFiles returns the .yaml/.yml files under dir, sorted. If
// filter is non-empty only file names containing it are returned.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" && !strings.Contains(filepath.Base(path), filter) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Remote != nil && !s.Session {
		return fmt.Errorf("remote requires session: true")
	}

	for i, step := range s.Steps {
		required, known := requiredArgs[step.Action]
		if !known {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		for _, arg := range required {
			if _, ok := step.Args[arg]; !ok {
				return fmt.Errorf("steps[%d]: %s requires arg %q", i, step.Action, arg)
			}
		}
		if step.Action == ActionPull && !s.Session {
			return fmt.Errorf("steps[%d]: pull requires session: true", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
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
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRequestCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for request_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
