package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/query"
	"github.com/roach88/runledger/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Type     string
	Where    []string
	Limit    int
}

// QueryOutput lists the matching indexed events.
type QueryOutput struct {
	Database string           `json:"database"`
	Count    int              `json:"count"`
	Events   []store.EventRow `json:"events"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search events in an exported SQLite index",
		Long: `Search the events written by "runledger export". Filters combine with AND.

--where takes path=value. The path is a dot-separated list of payload keys.
The value is read as JSON when it parses as a string, number, boolean or
null, and as a plain string otherwise; quote it ('"3"') to match the string "3".

Examples:
  runledger query --db ./runs.db --type USER_ACTION
  runledger query --db ./runs.db --run run-1 --where action=click
  runledger query --db ./runs.db --where order.total=30 --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only events of this run")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only events of this type")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "payload condition path=value (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = no limit)")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	s, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	if opts.Type != "" && !ir.EventType(opts.Type).Valid() {
		return s.out.Fail(ExitCommandError, ErrCodeQuery,
			fmt.Sprintf("unknown event type %q (want one of %v)", opts.Type, ir.EventTypes), nil)
	}
	conds := make([]query.PayloadEquals, 0, len(opts.Where))
	for _, raw := range opts.Where {
		cond, err := parseCondition(raw)
		if err != nil {
			return s.out.FailWith(ExitCommandError, ErrCodeQuery, err)
		}
		conds = append(conds, cond)
	}
	q := query.Select{Filter: query.Where(opts.RunID, opts.Type, conds...), Limit: opts.Limit}
	if res := query.Validate(q); !res.Valid {
		return s.out.Fail(ExitCommandError, ErrCodeQuery, res.Error(), res.Problems)
	}

	// Opening a missing path would create an empty database.
	if _, err := os.Stat(opts.Database); err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeNotFound, err)
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

	rows, err := st.FindEvents(ctx, q)
	if err != nil {
		return s.out.FailWith(ExitCommandError, ErrCodeExport, err)
	}
	s.logger.Debug("query finished", "db", opts.Database, "matches", len(rows))

	return s.out.Result(QueryOutput{Database: opts.Database, Count: len(rows), Events: rows}, queryText(rows))
}

// parseCondition splits path=value. JSON scalars keep their type; anything
// else is matched as a string.
func parseCondition(raw string) (query.PayloadEquals, error) {
	path, value, ok := strings.Cut(raw, "=")
	if !ok || path == "" {
		return query.PayloadEquals{}, fmt.Errorf("invalid condition %q: want path=value", raw)
	}
	v, err := ir.DecodeJSON([]byte(value))
	if err != nil {
		return query.PayloadEquals{Path: path, Value: value}, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return query.PayloadEquals{}, fmt.Errorf("invalid condition %q: objects and arrays cannot be compared", raw)
	}
	return query.PayloadEquals{Path: path, Value: v}, nil
}

func queryText(rows []store.EventRow) string {
	if len(rows) == 0 {
		return "No matching events.\n"
	}
	var sb strings.Builder
	for _, row := range rows {
		payload, err := ir.CanonicalString(row.Event.Payload)
		if err != nil {
			payload = "?"
		}
		fmt.Fprintf(&sb, "%s #%d %s %s %s\n", row.RunID, row.Seq, row.Event.Type, shortID(row.ID), payload)
	}
	fmt.Fprintf(&sb, "\n%d event(s)\n", len(rows))
	return sb.String()
}
