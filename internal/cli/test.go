package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir|scenario.yaml>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against the run log.

Each scenario dispatches events into a scratch run, optionally reopening it
from disk, and checks the trace, final phase and exported state. A scenario
with a golden file next to it (golden/<name>.golden) must also reproduce
that trace exactly.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  runledger test ./scenarios
  runledger test ./scenarios --filter "torn-*"
  runledger test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios not found: %s", path), nil)
	}

	files, err := harness.FindScenarios(path, opts.Filter)
	if err != nil {
		return out.FailWith(ExitCommandError, ErrCodeGeneric, err)
	}

	out.VerboseLog("Running %d scenario(s)", len(files))
	result := harness.RunSuite(files, harness.SuiteOptions{Update: opts.Update})

	if err := out.Result(result, testText(result)); err != nil {
		return err
	}
	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d scenario(s) failed", ErrCodeScenario, result.Failed))
	}
	return nil
}

func testText(result harness.SuiteResult) string {
	var b strings.Builder
	if result.Total == 0 {
		b.WriteString("No scenarios found.\n")
		return b.String()
	}

	for _, sr := range result.Scenarios {
		if sr.Pass {
			if sr.Golden == "updated" {
				fmt.Fprintf(&b, "✓ %s (golden updated)\n", sr.Name)
			} else {
				fmt.Fprintf(&b, "✓ %s\n", sr.Name)
			}
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
	}

	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	return b.String()
}
