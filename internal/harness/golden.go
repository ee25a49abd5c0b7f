package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/runledger/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Phase        string       `json:"phase"`
	Order        []string     `json:"order"`
	Trace        []TraceEvent `json:"trace"`
}

// NewSnapshot builds the snapshot of result for scenario.
func NewSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		RunID:        runID,
		Phase:        string(result.Phase),
		Order:        result.Order,
		Trace:        result.Trace,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":   event.Step,
			"kind":   event.Kind,
			"phase":  string(event.Phase),
			"events": event.Events,
		}
		if event.Kind != KindReopen {
			eventMap["type"] = string(event.Type)
			eventMap["payload"] = event.Payload
		}
		if event.Kind == KindDispatch {
			eventMap["id"] = event.ID
			eventMap["new"] = event.New
		}
		traceList[i] = eventMap
	}

	order := make([]any, len(s.Order))
	for i, id := range s.Order {
		order[i] = id
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"phase":         s.Phase,
		"order":         order,
		"trace":         traceList,
	}
}

// Marshal returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// GoldenPath returns the golden file for a scenario file:
// <dir>/golden/<name>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// UpdateGolden writes the snapshot of result as the golden file.
func UpdateGolden(goldenPath string, scenario *Scenario, result *Result) error {
	snapshot := NewSnapshot(scenario, result)
	data, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the snapshot of result matches goldenPath.
func CompareGolden(goldenPath string, scenario *Scenario, result *Result) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}

	snapshot := NewSnapshot(scenario, result)
	currentData, err := snapshot.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal current trace: %w", err)
	}
	return bytes.Equal(goldenData, currentData), nil
}

// scenarioGoldenDir holds the goldens of the package's scenarios. It is the
// directory GoldenPath gives for testdata/scenarios/*.yaml, so goldie and
// RunSuite read the same files.
var scenarioGoldenDir = filepath.Join("testdata", "scenarios", "golden")

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/scenarios/golden/{scenario.Name}.golden
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
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenario, result)
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(scenarioGoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
