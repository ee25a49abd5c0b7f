package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/run"
	"github.com/roach88/runledger/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	All      bool
}

// ExportOutput lists the per-run export results.
type ExportOutput struct {
	Database string               `json:"database"`
	Runs     []store.ExportResult `json:"runs"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export [run-id...]",
		Short: "Mirror run logs into a SQLite index",
		Long: `Replay run logs and write their events into a SQLite database for
querying. The logs stay the source of truth; exporting is idempotent and only
adds events appended since the previous export.

Examples:
  runledger export run-1 --db ./runs.db
  runledger export --all --db ./runs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.All, "all", false, "export every run in the directory")

	return cmd
}

func runExport(opts *ExportOptions, runIDs []string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	if opts.All {
		runIDs, err = run.List(s.cfg.PersistDir)
		if err != nil {
			return s.fail(err)
		}
	} else if len(runIDs) == 0 {
		return s.out.Fail(ExitCommandError, ErrCodeGeneric, "no run ids given (use --all to export every run)", nil)
	}

	if err := s.cfg.Policy.Check(opts.Database); err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodePolicy, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeExport, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			s.logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := ExportOutput{Database: opts.Database, Runs: make([]store.ExportResult, 0, len(runIDs))}
	var text strings.Builder
	for _, id := range runIDs {
		r, err := s.openRun(id)
		if err != nil {
			return err
		}
		res, err := st.ExportRun(ctx, r)
		if err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodeExport, err)
		}
		s.logger.Debug("run exported", "run", id, "inserted", res.Inserted)
		out.Runs = append(out.Runs, res)
		fmt.Fprintf(&text, "%s: %d event(s), %d new, phase %s\n", res.RunID, res.Events, res.Inserted, res.Phase)
	}

	return s.out.Result(out, text.String())
}
