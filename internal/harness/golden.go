package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/appsim/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	FinalState   ir.IRObject
}

// toObject converts a TraceSnapshot to an IRObject for canonical JSON
// serialization.
func (s *TraceSnapshot) toObject() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.toObject()
	}
	final := s.FinalState
	if final == nil {
		final = ir.IRObject{}
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
		"final_state":   final,
	}
}

// MarshalTrace renders a result's trace and final state as canonical JSON.
// Identical runs produce identical bytes.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	if result.State != nil {
		snapshot.FinalState = result.State.ToObject()
	}
	return ir.MarshalCanonical(snapshot.toObject())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
