package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/run"
)

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Events        int    `json:"events"`
	Phase         string `json:"phase"`
	Discarded     int    `json:"discarded"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [run-id...]",
		Short: "Replay run logs and verify determinism",
		Long: `Replay run logs twice and verify both replays agree.

Each run is hydrated from its log two times; the event order and final phase
must be identical. With no arguments every run in the directory is checked.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (unreadable log, etc.)

Examples:
  runledger replay
  runledger replay run-1 run-2 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args, cmd)
		},
	}
}

func runReplay(opts *RootOptions, runIDs []string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	if len(runIDs) == 0 {
		runIDs, err = run.List(s.cfg.PersistDir)
		if err != nil {
			return s.fail(err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}

	for _, id := range runIDs {
		s.out.VerboseLog("Replaying %s", id)
		rr, err := replayAndVerify(s, id)
		if err != nil {
			return err
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if err := s.out.Result(result, replayText(result)); err != nil {
		return err
	}
	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, ErrCodeNondeterminism+": determinism verification failed")
	}
	return nil
}

// replayAndVerify hydrates a run twice and compares the results.
func replayAndVerify(s *session, runID string) (ReplayRunResult, error) {
	first, err := s.openRun(runID)
	if err != nil {
		return ReplayRunResult{}, err
	}
	second, err := s.openRun(runID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	return ReplayRunResult{
		RunID:         runID,
		Events:        first.Len(),
		Phase:         string(first.Phase()),
		Discarded:     first.Stats().Discarded,
		Deterministic: sameReplay(first, second),
	}, nil
}

// sameReplay reports whether two hydrations produced the same state.
// Identities are content hashes, so equal orders mean equal events.
func sameReplay(a, b *run.Run) bool {
	return a.Phase() == b.Phase() && slices.Equal(a.Order(), b.Order())
}

func replayText(result ReplayResult) string {
	var b strings.Builder
	if result.TotalRuns == 0 {
		b.WriteString("No runs found.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Replay Summary: %d run(s)\n\n", result.TotalRuns)
	for _, rr := range result.Runs {
		mark := "ok"
		if !rr.Deterministic {
			mark = "MISMATCH"
		}
		fmt.Fprintf(&b, "[%s] %s: %d event(s), phase %s", mark, rr.RunID, rr.Events, rr.Phase)
		if rr.Discarded > 0 {
			fmt.Fprintf(&b, ", %d discarded line(s)", rr.Discarded)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if result.AllDeterministic {
		b.WriteString("All runs verified deterministic\n")
	} else {
		b.WriteString("Determinism verification FAILED\n")
	}
	return b.String()
}
