package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/run"
	"github.com/roach88/runledger/internal/schema"
)

// ValidateResult is the lint report for one run log.
type ValidateResult struct {
	RunID  string        `json:"run_id"`
	Clean  bool          `json:"clean"`
	Report schema.Report `json:"report"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <run-id>",
		Short: "Lint a run log against the record schema",
		Long: `Check every line of a run log against the record schema without
modifying it.

Each non-blank line is reported as ok, malformed (not JSON), schema (JSON but
not a valid record), duplicate (identity already seen) or torn_tail (an
unterminated final fragment). Replay silently skips everything that is not
ok; this command makes those lines visible.

Exit codes:
  0 - Every line is a distinct, valid record
  1 - The log has lines replay would skip, or a torn tail
  2 - Command error (log not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, runID string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	if err := run.ValidateRunID(runID); err != nil {
		return s.fail(err)
	}

	path := run.LogPath(s.cfg.PersistDir, runID)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run log not found: %s", path), nil)
	}
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodePersistence, err)
	}
	defer f.Close()

	v, err := schema.New()
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeGeneric, err)
	}
	s.out.VerboseLog("Linting %s", path)

	report, err := v.LintLog(f)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodePersistence, err)
	}

	result := ValidateResult{RunID: runID, Clean: report.Clean(), Report: report}
	if err := s.out.Result(result, validateText(result, opts.Verbose)); err != nil {
		return err
	}
	if !result.Clean {
		return NewExitError(ExitFailure, ErrCodeLint+": run log has findings")
	}
	return nil
}

func validateText(result ValidateResult, verbose bool) string {
	var b strings.Builder
	r := result.Report
	for _, lr := range r.Lines {
		if lr.Status == schema.StatusOK && !verbose {
			continue
		}
		fmt.Fprintf(&b, "line %d: %s", lr.Line, lr.Status)
		if lr.Message != "" {
			fmt.Fprintf(&b, ": %s", lr.Message)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s: %d valid, %d malformed, %d schema, %d duplicate",
		result.RunID, r.Valid, r.Malformed, r.Schema, r.Duplicates)
	if r.UnterminatedTail {
		b.WriteString(", unterminated tail")
	}
	b.WriteString("\n")
	if result.Clean {
		b.WriteString("Log is clean\n")
	}
	return b.String()
}
