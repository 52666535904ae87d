package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/qshape/internal/ir"
)

// Snapshot captures the observable outcome of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	Mode         string
	Nullability  map[string]string
	Rows         []ir.IRValue
	ErrorCode    string
}

// NewSnapshot captures result under name.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{
		ScenarioName: name,
		Mode:         result.Mode,
		Nullability:  result.Nullability,
		Rows:         result.Rows,
		ErrorCode:    result.ErrorCode,
	}
	return s
}

// toIR converts a Snapshot to an IR object for canonical JSON serialization.
func (s *Snapshot) toIR() ir.IRObject {
	obj := ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"rows":          ir.IRArray(s.Rows),
	}
	if s.Mode != "" {
		obj["mode"] = ir.IRString(s.Mode)
	}
	if len(s.Nullability) > 0 {
		n := make(ir.IRObject, len(s.Nullability))
		for table, v := range s.Nullability {
			n[table] = ir.IRString(v)
		}
		obj["nullability"] = n
	}
	if s.ErrorCode != "" {
		obj["error_code"] = ir.IRString(s.ErrorCode)
	}
	return obj
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toIR())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
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

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
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
