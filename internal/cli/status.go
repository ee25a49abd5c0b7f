package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/run"
)

// StatusOutput describes a hydrated run.
type StatusOutput struct {
	RunID  string           `json:"run_id"`
	Phase  string           `json:"phase"`
	Events int              `json:"events"`
	Order  []string         `json:"order"`
	Stats  run.HydrateStats `json:"stats"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run's phase and events",
		Long: `Replay a run's log and show its phase, applied events and what replay
found in the file (discarded lines, duplicates, torn tail).

A run with no log is reported as IDLE with no events.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}
}

func runStatus(opts *RootOptions, runID string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	r, err := s.openRun(runID)
	if err != nil {
		return err
	}

	out := StatusOutput{
		RunID:  runID,
		Phase:  string(r.Phase()),
		Events: r.Len(),
		Order:  r.Order(),
		Stats:  r.Stats(),
	}
	if out.Order == nil {
		out.Order = []string{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Phase: %s\n", out.Phase)
	fmt.Fprintf(&b, "Events: %d\n", out.Events)
	if out.Stats.Discarded > 0 || out.Stats.Duplicates > 0 || out.Stats.UnterminatedTail {
		fmt.Fprintf(&b, "Replay: %d discarded, %d duplicate, torn tail: %v\n",
			out.Stats.Discarded, out.Stats.Duplicates, out.Stats.UnterminatedTail)
	}
	if opts.Verbose {
		for i, ev := range r.Events() {
			fmt.Fprintf(&b, "  %3d  %-11s %s\n", i+1, ev.Type, shortID(out.Order[i]))
		}
	}
	return s.out.Result(out, b.String())
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
