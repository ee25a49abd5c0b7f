package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/template"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Context  string   // JSON object
	Require  []string // keys the output must carry
	Output   string   // optional output file
	Previous string   // optional previous version body, for the protected-section check
	Protect  []string // protected sections of the previous version
	Override bool
}

// RenderOutput is the result of rendering a template.
type RenderOutput struct {
	Template    string                     `json:"template"`
	ContentHash string                     `json:"content_hash"`
	State       template.State             `json:"state"`
	MissingKeys []string                   `json:"missing_keys,omitempty"`
	OutputJSON  string                     `json:"output_json,omitempty"`
	Validation  *template.ValidationResult `json:"validation,omitempty"`
	Written     string                     `json:"written,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <template-file>",
		Short: "Render a JSON template to canonical JSON",
		Long: `Bind a context into a template body with {{KEY}} placeholders and emit
the result as canonical JSON.

Missing values report the sorted list of keys that still need input (exit 1).
With --previous, the template must keep every --protect section of the
previous body unless --override is given.

Examples:
  runledger render ticket.json --context '{"TITLE":"Fix","SCOPE":"api"}'
  runledger render ticket.json --context @ctx.json --require title -o out.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "{}", "context as a JSON object, or @file")
	cmd.Flags().StringSliceVar(&opts.Require, "require", nil, "keys the rendered object must contain")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the rendered JSON to this file")
	cmd.Flags().StringVar(&opts.Previous, "previous", "", "previous template file to check protected sections against")
	cmd.Flags().StringArrayVar(&opts.Protect, "protect", nil, "protected section of the previous template (repeatable)")
	cmd.Flags().BoolVar(&opts.Override, "override", false, "skip the protected-section check")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeNotFound, err)
	}

	ctxText := opts.Context
	if strings.HasPrefix(ctxText, "@") {
		data, err := os.ReadFile(ctxText[1:])
		if err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodeNotFound, err)
		}
		ctxText = string(data)
	}
	bindings, err := parsePayload(ctxText)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeGeneric, fmt.Errorf("context: %w", err))
	}

	templateID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	reg := template.NewRegistry()

	var previous *template.Version
	if opts.Previous != "" {
		prevBody, err := os.ReadFile(opts.Previous)
		if err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodeNotFound, err)
		}
		prev, err := reg.Register(templateID, "previous", string(prevBody), opts.Protect, template.StatusArchived)
		if err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodeTemplate, err)
		}
		previous = &prev
	}

	current, err := reg.Register(templateID, "current", string(body), nil, template.StatusActive)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeTemplate, err)
	}
	if err := template.AssertSafeActivation(previous, current, opts.Override); err != nil {
		return s.out.FailWith(ExitFailure, ErrCodeTemplate, err)
	}

	res := template.Compile(current, bindings)
	out := RenderOutput{
		Template:    templateID,
		ContentHash: current.ContentHash,
		State:       res.State,
		MissingKeys: res.MissingKeys,
		OutputJSON:  res.OutputJSON,
	}

	switch res.State {
	case template.StateNeedsInput:
		return s.out.Fail(ExitFailure, ErrCodeNeedsInput,
			"template needs input: "+strings.Join(res.MissingKeys, ", "), out)
	case template.StateInvalid:
		return s.out.Fail(ExitFailure, ErrCodeTemplate, strings.Join(res.Reasons, "; "), out)
	}

	if len(opts.Require) > 0 {
		val := template.Validate(res.OutputJSON, opts.Require)
		out.Validation = &val
		if !val.Valid {
			return s.out.Fail(ExitFailure, ErrCodeTemplate, strings.Join(val.Reasons, "; "), out)
		}
	}

	if opts.Output != "" {
		if err := s.cfg.Policy.Check(opts.Output); err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodePolicy, err)
		}
		if err := os.WriteFile(opts.Output, []byte(res.OutputJSON), 0o644); err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodeWriteFailed, err)
		}
		out.Written = opts.Output
		s.logger.Debug("template rendered", "template", templateID, "output", opts.Output)
		return s.out.Result(out, fmt.Sprintf("wrote %s\n", opts.Output))
	}

	return s.out.Result(out, res.OutputJSON+"\n")
}
