package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/run"
	"github.com/roach88/runledger/internal/store"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	dir    string
	runID  string
	run    *run.Run
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory and a fresh in-memory
// database for isolation.
//
// Execution flow:
// 1. Seed the run log from scenario.Log
// 2. Open (hydrate) the run
// 3. Execute flow steps, checking expect clauses
// 4. Export the run to SQLite
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "runledger-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	if scenario.Log != "" {
		if err := os.WriteFile(run.LogPath(dir, runID), []byte(scenario.Log), 0o644); err != nil {
			return nil, fmt.Errorf("failed to seed log: %w", err)
		}
	}

	h := &Harness{
		dir:    dir,
		runID:  runID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	if err := h.reopen(); err != nil {
		return nil, err
	}

	result := NewResult()
	if err := h.executeFlow(scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	result.Phase = h.run.Phase()
	result.Order = h.run.Order()
	result.Stats = h.run.Stats()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.ExportRun(ctx, h.run); err != nil {
		return nil, fmt.Errorf("failed to export run: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) reopen() error {
	r, err := run.Open(h.runID, h.dir, run.WithLogger(h.logger))
	if err != nil {
		return fmt.Errorf("failed to open run: %w", err)
	}
	h.run = r
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Expect mismatches are recorded on result. Only failures of the harness
// itself (an unreadable or unwritable log) are returned.
func (h *Harness) executeFlow(flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if step.Reopen {
			if err := h.reopen(); err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			result.AddReopenTrace(i, h.run.Phase(), h.run.Len())
			h.checkExpect(i, step.Expect, nil, result)
			continue
		}

		payload := step.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		ev := ir.NewEvent(step.Dispatch, payload)

		res, err := h.run.Dispatch(ev)
		if err != nil {
			if !ir.IsValidationError(err) {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			result.AddRejectedTrace(i, ev, h.run.Phase(), h.run.Len())
			if step.Expect == nil || !step.Expect.Rejected {
				result.AddError(fmt.Sprintf("flow[%d]: dispatch %s rejected: %v", i, ev.Type, err))
			}
			continue
		}

		result.AddDispatchTrace(i, ev, res, h.run.Phase(), h.run.Len())
		h.checkExpect(i, step.Expect, &res, result)

		h.logger.Info("flow step completed",
			"step", i,
			"type", ev.Type,
			"id", res.ID,
			"new", res.NewAction,
		)
	}
	return nil
}

// checkExpect compares the run after step i against expect. res is nil for
// reopen steps.
func (h *Harness) checkExpect(i int, expect *ExpectClause, res *run.DispatchResult, result *Result) {
	if expect == nil {
		return
	}
	if expect.Rejected {
		result.AddError(fmt.Sprintf("flow[%d]: expected rejection, dispatch succeeded", i))
	}
	if res != nil {
		if expect.New != nil && *expect.New != res.NewAction {
			result.AddError(fmt.Sprintf("flow[%d]: expected new=%v, got new=%v", i, *expect.New, res.NewAction))
		}
		if expect.ID != "" && expect.ID != res.ID {
			result.AddError(fmt.Sprintf("flow[%d]: expected id %s, got %s", i, expect.ID, res.ID))
		}
	}
	if expect.Phase != "" && expect.Phase != h.run.Phase() {
		result.AddError(fmt.Sprintf("flow[%d]: expected phase %s, got %s", i, expect.Phase, h.run.Phase()))
	}
	if expect.Events != nil && *expect.Events != h.run.Len() {
		result.AddError(fmt.Sprintf("flow[%d]: expected %d events, got %d", i, *expect.Events, h.run.Len()))
	}
}
