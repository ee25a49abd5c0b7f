package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/machine"
	"github.com/roach88/runledger/internal/run"
)

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "scenario"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID names the run. Defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Log is written verbatim as the run's log before the flow starts.
	// Use a "|-" block to leave the final line unterminated.
	Log string `yaml:"log,omitempty"`

	// Flow contains the steps to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is either a dispatch or a reopen.
type FlowStep struct {
	// Dispatch is the event type to dispatch.
	Dispatch ir.EventType `yaml:"dispatch,omitempty"`

	// Payload is the event payload. Missing means an empty object.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Reopen hydrates the run again from its log.
	Reopen bool `yaml:"reopen,omitempty"`

	// Expect checks the outcome of the step. Optional.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome. Unset fields are not
// checked.
type ExpectClause struct {
	New      *bool         `yaml:"new,omitempty"`
	Phase    machine.Phase `yaml:"phase,omitempty"`
	ID       string        `yaml:"id,omitempty"`
	Events   *int          `yaml:"events,omitempty"`
	Rejected bool          `yaml:"rejected,omitempty"` // dispatch must fail validation
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the event type (trace_contains, trace_count).
	Event ir.EventType `yaml:"event,omitempty"`

	// Payload is matched as a subset (trace_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Events is the expected order of event types (trace_order).
	Events []ir.EventType `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Phase is the expected final phase (final_phase).
	Phase machine.Phase `yaml:"phase,omitempty"`

	// Table and Where select one exported row (final_state).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected fields (final_state, replay_stats).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalPhase    = "final_phase"
	AssertReplayStats   = "replay_stats"
	AssertFinalState    = "final_state"
)

// statsFields are the keys accepted by replay_stats.
var statsFields = map[string]bool{
	"lines":             true,
	"applied":           true,
	"discarded":         true,
	"duplicates":        true,
	"unterminated_tail": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so typos like "assertion:" fail loudly
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.RunID != "" {
		if err := run.ValidateRunID(s.RunID); err != nil {
			return fmt.Errorf("run_id: %w", err)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		switch {
		case step.Reopen && step.Dispatch != "":
			return fmt.Errorf("flow[%d]: dispatch and reopen are mutually exclusive", i)
		case !step.Reopen && step.Dispatch == "":
			return fmt.Errorf("flow[%d]: dispatch or reopen is required", i)
		case step.Reopen && step.Payload != nil:
			return fmt.Errorf("flow[%d]: payload is not allowed on reopen", i)
		case step.Reopen && step.Expect != nil && (step.Expect.Rejected || step.Expect.New != nil || step.Expect.ID != ""):
			return fmt.Errorf("flow[%d].expect: reopen supports only phase and events", i)
		}
		if step.Expect != nil && step.Expect.Phase != "" && !step.Expect.Phase.Valid() {
			return fmt.Errorf("flow[%d].expect: unknown phase %q", i, step.Expect.Phase)
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
	case AssertFinalPhase:
		if !a.Phase.Valid() {
			return fmt.Errorf("assertions[%d]: valid phase is required for final_phase", index)
		}
	case AssertReplayStats:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for replay_stats", index)
		}
		for key := range a.Expect {
			if !statsFields[key] {
				return fmt.Errorf("assertions[%d]: unknown replay_stats field %q", index, key)
			}
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
