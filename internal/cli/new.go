package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/run"
)

// NewRunResult is the output of the new command.
type NewRunResult struct {
	RunID string `json:"run_id"`
}

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Mint a new run id",
		Long: `Print a fresh time-sortable run id (UUIDv7).

Nothing is written: the run's log is created by its first dispatch.

Example:
  RUN=$(runledger new)
  runledger dispatch "$RUN" --type SYS_START`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := run.NewRunID()
			return rootOpts.formatter(cmd).Result(NewRunResult{RunID: id}, id+"\n")
		},
	}
}
