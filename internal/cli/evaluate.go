package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/runledger/internal/config"
	"github.com/roach88/runledger/internal/evaluator"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	Ledger string
	Delta  string
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evaluate <requirements-file> <agent-output-file>",
		Short: "Check agent output against a requirement ledger",
		Long: `Score agent output against a list of requirements and record the result
in a requirement ledger.

The requirements file is a YAML (or JSON) list of {id, description,
evidence_path} items. Use - as the output file to read from stdin.

Each requirement is done, partial, todo or blocked. Outstanding requirements
are written to a delta ticket (exit 1). A requirement the previous ledger
recorded as done that is asked for again is blocked for operator input
(exit 1).

Examples:
  runledger evaluate reqs.yaml agent.txt --ledger ledger.json --delta delta.json
  agent-run | runledger evaluate reqs.yaml - --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "requirement ledger file to read and rewrite")
	cmd.Flags().StringVar(&opts.Delta, "delta", "", "delta ticket file to write or remove")

	return cmd
}

func runEvaluate(opts *EvaluateOptions, reqPath, outputPath string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	reqs, err := loadRequirements(reqPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.out.FailWith(ExitCommandError, ErrCodeNotFound, err)
		}
		return s.out.FailWith(ExitCommandError, ErrCodeRequirements, err)
	}

	var output []byte
	if outputPath == "-" {
		output, err = io.ReadAll(cmd.InOrStdin())
	} else {
		output, err = os.ReadFile(outputPath)
	}
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeNotFound, err)
	}

	ev := evaluator.New(
		evaluator.Paths{Ledger: opts.Ledger, DeltaTicket: opts.Delta},
		evaluator.WithPolicy(s.cfg.Policy),
		evaluator.WithLogger(s.logger),
	)
	report, err := ev.Evaluate(string(output), reqs)
	switch {
	case errors.Is(err, config.ErrPathNotAllowed):
		return s.out.FailWith(ExitCommandError, ErrCodePolicy, err)
	case errors.Is(err, evaluator.ErrInvalidRequirement):
		return s.out.FailWith(ExitCommandError, ErrCodeRequirements, err)
	case err != nil:
		return s.out.FailWith(ExitCommandError, ErrCodeWriteFailed, err)
	}

	if err := s.out.Result(report, evaluateText(report)); err != nil {
		return err
	}
	switch report.Verdict {
	case evaluator.VerdictDelta:
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d requirement(s) outstanding, ticket %s",
			ErrCodeOutstanding, len(report.DeltaTicket.Outstanding), report.DeltaTicket.TicketID))
	case evaluator.VerdictNeedsInput:
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d requirement(s) need operator input",
			ErrCodeOperatorInput, len(report.NeedsInput)))
	}
	return nil
}

// loadRequirements reads a YAML or JSON list of requirements.
func loadRequirements(path string) ([]evaluator.Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reqs []evaluator.Requirement
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("requirements %s: %w", path, err)
	}
	return reqs, nil
}

func evaluateText(report evaluator.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Verdict: %s\n\n", report.Verdict)
	for _, entry := range report.Ledger {
		fmt.Fprintf(&b, "[%s] %s: %s\n", entry.Status, entry.RequirementID, entry.Reason)
	}
	if report.DeltaTicket != nil {
		fmt.Fprintf(&b, "\nDelta ticket %s: %d outstanding\n",
			report.DeltaTicket.TicketID, len(report.DeltaTicket.Outstanding))
	}
	return b.String()
}
