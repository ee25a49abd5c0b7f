package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/query"
)

// ErrRunNotFound is returned when a run has never been exported.
var ErrRunNotFound = errors.New("run not found")

// EventRow is one indexed event.
type EventRow struct {
	RunID string   `json:"run_id"`
	ID    string   `json:"id"`
	Seq   int64    `json:"seq"`
	Event ir.Event `json:"event"`
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	RunID      string `json:"run_id"`
	Phase      string `json:"phase"`
	EventCount int    `json:"event_count"`
}

// RunSummary aggregates the indexed events of one run.
type RunSummary struct {
	RunInfo
	LastSeq    int64                `json:"last_seq"`
	TypeCounts map[ir.EventType]int `json:"type_counts"`
}

// ReadRunEvents returns all events for a run.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no events exist for the run.
func (s *Store) ReadRunEvents(ctx context.Context, runID string) ([]EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, id, seq, type, version, payload
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRow{}
	for rows.Next() {
		row, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// FindEvents returns the indexed events matching q across all runs, ordered
// by run id, seq and event id.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FindEvents(ctx context.Context, q query.Select) ([]EventRow, error) {
	stmt, params, err := query.Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer rows.Close()

	events := []EventRow{}
	for rows.Next() {
		row, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEvent retrieves a single event by run and identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEvent(ctx context.Context, runID, id string) (EventRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, id, seq, type, version, payload
		FROM events
		WHERE run_id = ? AND id = ?
	`, runID, id)
	return scanEvent(row)
}

// ListRuns returns all exported runs ordered by run id.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, phase, event_count
		FROM runs
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.RunID, &info.Phase, &info.EventCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRunSummary returns the phase, counts and last seq of one run.
// Returns ErrRunNotFound if the run has never been exported.
func (s *Store) GetRunSummary(ctx context.Context, runID string) (RunSummary, error) {
	summary := RunSummary{TypeCounts: map[ir.EventType]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, phase, event_count FROM runs WHERE run_id = ?
	`, runID).Scan(&summary.RunID, &summary.Phase, &summary.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return summary, fmt.Errorf("get run summary: %w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return summary, fmt.Errorf("get run summary: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id = ?
	`, runID).Scan(&summary.LastSeq); err != nil {
		return summary, fmt.Errorf("get run summary: last seq: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM events
		WHERE run_id = ?
		GROUP BY type
		ORDER BY type
	`, runID)
	if err != nil {
		return summary, fmt.Errorf("get run summary: type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return summary, fmt.Errorf("get run summary: scan type count: %w", err)
		}
		summary.TypeCounts[ir.EventType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("get run summary: iterate type counts: %w", err)
	}

	return summary, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (EventRow, error) {
	var (
		row     EventRow
		typ     string
		version string
		payload string
	)
	if err := sc.Scan(&row.RunID, &row.ID, &row.Seq, &typ, &version, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EventRow{}, err
		}
		return EventRow{}, fmt.Errorf("scan event: %w", err)
	}

	obj, err := unmarshalPayload(payload)
	if err != nil {
		return EventRow{}, err
	}
	row.Event = ir.Event{Type: ir.EventType(typ), Version: version, Payload: obj}
	return row, nil
}

// marshalPayload converts a payload to canonical JSON TEXT for storage.
func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back into a payload.
// Numbers are kept as json.Number to avoid float64 precision loss for
// integers beyond 2^53.
func unmarshalPayload(data string) (map[string]any, error) {
	v, err := ir.DecodeJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal payload: stored payload is %T, not an object", v)
	}
	return obj, nil
}
