package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/config"
	"github.com/roach88/runledger/internal/run"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // optional YAML config file
	Dir        string // overrides the configured persist_dir
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the runledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "runledger",
		Short: "runledger - append-only run event logs",
		Long: `Content-addressed, append-only event logs for workflow runs.

Each run is a JSONL file of events. Replaying the file rebuilds the run's
lifecycle phase deterministically, and dispatching the same event twice
never writes it twice.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "directory holding run logs (overrides persist_dir)")

	// Add subcommands
	cmd.AddCommand(NewNewCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewEvaluateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the OutputFormatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// settings loads the config file and applies the --dir override.
func (o *RootOptions) settings() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Dir != "" {
		cfg.PersistDir = o.Dir
	}
	return cfg, nil
}

// logger returns a text slog.Logger on w. --verbose forces debug level.
func (o *RootOptions) logger(w io.Writer, cfg config.Config) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session bundles what every run-level command needs.
type session struct {
	cfg    config.Config
	out    *OutputFormatter
	logger *slog.Logger
}

// setup loads settings and reports config failures through the formatter.
func (o *RootOptions) setup(cmd *cobra.Command) (*session, error) {
	out := o.formatter(cmd)
	cfg, err := o.settings()
	if err != nil {
		return nil, out.FailWith(ExitCommandError, ErrCodeConfig, err)
	}
	return &session{cfg: cfg, out: out, logger: o.logger(cmd.ErrOrStderr(), cfg)}, nil
}

// openRun opens runID in the configured directory, mapping errors to exit
// codes.
func (s *session) openRun(runID string) (*run.Run, error) {
	r, err := run.Open(runID, s.cfg.PersistDir,
		run.WithLogger(s.logger),
		run.WithSync(s.cfg.SyncWrites),
	)
	if err != nil {
		return nil, s.fail(err)
	}
	return r, nil
}

// fail maps core errors to CLI error codes.
func (s *session) fail(err error) error {
	switch {
	case run.IsPersistenceFailure(err):
		return s.out.FailWith(ExitCommandError, ErrCodePersistence, err)
	case errors.Is(err, run.ErrInvalidRunID):
		return s.out.FailWith(ExitCommandError, ErrCodeInvalidRunID, err)
	default:
		return s.out.FailWith(ExitCommandError, ErrCodeGeneric, err)
	}
}
