package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/specialize/internal/dispatch"
)

// Scenario defines a dispatch scenario.
// A scenario binds one node kind, feeds calls to node instances of it and
// checks results, counters and the recorded trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring node kinds.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Node is the node kind under test.
	Node string `yaml:"node"`

	// MaxActive bounds the active chain. Zero means dispatch.DefaultMaxActive.
	MaxActive int `yaml:"max_active,omitempty"`

	// RunID fixes the run id. Defaults to "run-1".
	RunID string `yaml:"run_id,omitempty"`

	// Steps run in order against the current node. The first node is
	// created before step 0; a new_node step replaces it.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and node state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is either a call or a node reset.
type Step struct {
	// Call holds one tagged value per argument, e.g. [{int: 42}].
	Call []Arg `yaml:"call,omitempty"`

	// NewNode creates a fresh node instance: empty chain, zero counters.
	NewNode bool `yaml:"new_node,omitempty"`

	// Expect checks the call outcome and the node state afterwards.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a call.
type ExpectClause struct {
	// Result is the expected return value as a tagged value.
	Result Arg `yaml:"result,omitempty"`

	// Error is "unsupported", "arity" or a library error kind name.
	Error string `yaml:"error,omitempty"`

	StateExpect `yaml:",inline"`
}

// StateExpect is a subset match against dispatch.Stats.
// Nil fields and names missing from the maps are not checked.
type StateExpect struct {
	Chain      *[]string        `yaml:"chain,omitempty"`
	Guards     map[string]int64 `yaml:"guards,omitempty"`
	Executions map[string]int64 `yaml:"executions,omitempty"`
	Fallback   *int64           `yaml:"fallback,omitempty"`
	Excluded   *[]string        `yaml:"excluded,omitempty"`
	Calls      *int64           `yaml:"calls,omitempty"`
}

// EventPattern matches trace events. Empty fields match anything.
type EventPattern struct {
	Event          string `yaml:"event,omitempty"`
	Specialization string `yaml:"specialization,omitempty"`
	Guard          string `yaml:"guard,omitempty"`
	Phase          string `yaml:"phase,omitempty"`
	Node           string `yaml:"node,omitempty"`
}

// Assertion validates the trace or the final node state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some event matches the pattern
	// - "trace_order": events matching Events appear in that order
	// - "trace_count": exactly Count events match the pattern
	// - "final_state": the node's final stats match Expect
	Type string `yaml:"type"`

	EventPattern `yaml:",inline"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order (trace_order).
	Events []EventPattern `yaml:"events,omitempty"`

	// Expect is the expected node state (final_state). Node selects the
	// node; empty means the last one created.
	Expect *StateExpect `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

var eventKinds = map[string]bool{
	string(dispatch.EventCall):     true,
	string(dispatch.EventGuard):    true,
	string(dispatch.EventInstall):  true,
	string(dispatch.EventConfirm):  true,
	string(dispatch.EventExecute):  true,
	string(dispatch.EventRewrite):  true,
	string(dispatch.EventFallback): true,
	string(dispatch.EventMiss):     true,
	string(dispatch.EventResult):   true,
	string(dispatch.EventError):    true,
}

// LoadScenario reads and parses a scenario YAML file, resolving spec paths
// relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating spec paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if s.Node == "" {
		return fmt.Errorf("node is required")
	}

	if s.MaxActive < 0 {
		return fmt.Errorf("max_active must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
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

func validateStep(index int, step *Step) error {
	isCall := step.Call != nil
	if isCall == step.NewNode {
		return fmt.Errorf("steps[%d]: exactly one of call and new_node is required", index)
	}
	for j, arg := range step.Call {
		if _, err := arg.Value(); err != nil {
			return fmt.Errorf("steps[%d].call[%d]: %w", index, j, err)
		}
	}
	if step.Expect == nil {
		return nil
	}
	if step.NewNode {
		return fmt.Errorf("steps[%d]: expect is only valid on a call", index)
	}
	if step.Expect.Result != nil && step.Expect.Error != "" {
		return fmt.Errorf("steps[%d].expect: result and error are mutually exclusive", index)
	}
	if step.Expect.Result != nil {
		if _, err := step.Expect.Result.Value(); err != nil {
			return fmt.Errorf("steps[%d].expect.result: %w", index, err)
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
	case AssertTraceContains, AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		return validatePattern(index, a.EventPattern)
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for _, p := range a.Events {
			if err := validatePattern(index, p); err != nil {
				return err
			}
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validatePattern(index int, p EventPattern) error {
	if p.Event != "" && !eventKinds[p.Event] {
		return fmt.Errorf("assertions[%d]: unknown event kind %q", index, p.Event)
	}
	return nil
}
