package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/specialize/internal/ir"
)

// TraceSnapshot captures the observable outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to a map for ir.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	outcomes := make([]any, len(s.Result.Outcomes))
	for i, o := range s.Result.Outcomes {
		m := map[string]any{
			"step": o.Step,
			"node": o.Node,
			"call": o.Call,
		}
		if o.Error != "" {
			m["error"] = o.Error
		} else {
			m["value"] = o.Value
		}
		outcomes[i] = m
	}

	trace := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		trace[i] = ev.Canonical()
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"outcomes":      outcomes,
		"trace":         trace,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
