package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/run"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Type    string
	Payload string // JSON object
}

// DispatchOutput is the result of one dispatch.
type DispatchOutput struct {
	RunID     string `json:"run_id"`
	ID        string `json:"id"`
	NewAction bool   `json:"new_action"`
	Phase     string `json:"phase"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <run-id>",
		Short: "Append an event to a run",
		Long: `Append an event to a run's log and advance its phase.

Dispatch is idempotent: an event whose identity (type, version and payload,
in canonical form) is already in the log is reported as a duplicate and not
written again.

Examples:
  runledger dispatch run-1 --type SYS_START
  runledger dispatch run-1 --type USER_ACTION --payload '{"action":"click"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "event type (SYS_START|SYS_STOP|USER_ACTION)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "event payload as a JSON object")

	return cmd
}

func runDispatch(opts *DispatchOptions, runID string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	payload, err := parsePayload(opts.Payload)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeInvalidEvent, err)
	}
	ev := ir.NewEvent(ir.EventType(opts.Type), payload)
	if err := ir.ValidateEvent(ev); err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeInvalidEvent, err)
	}

	if err := s.cfg.Policy.Check(run.LogPath(s.cfg.PersistDir, runID)); err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodePolicy, err)
	}

	r, err := s.openRun(runID)
	if err != nil {
		return err
	}

	res, err := r.Dispatch(ev)
	if err != nil {
		return s.fail(err)
	}

	out := DispatchOutput{
		RunID:     runID,
		ID:        res.ID,
		NewAction: res.NewAction,
		Phase:     string(r.Phase()),
	}
	s.logger.Debug("dispatch", "run", runID, "id", res.ID, "new", res.NewAction)

	verdict := "new"
	if !res.NewAction {
		verdict = "duplicate"
	}
	return s.out.Result(out, fmt.Sprintf("%s %s phase=%s\n", verdict, res.ID, out.Phase))
}

// parsePayload decodes a JSON object, keeping numbers exact.
func parsePayload(text string) (map[string]any, error) {
	if text == "" {
		return map[string]any{}, nil
	}
	v, err := ir.DecodeJSON([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload: must be a JSON object")
	}
	return obj, nil
}
