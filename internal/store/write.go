package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/run"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteEvent inserts one event for runID at position seq.
// Uses ON CONFLICT(run_id, id) DO NOTHING for idempotency: an identity that is
// already indexed for the run is left untouched and inserted=false.
//
// The run row is created on demand in phase IDLE. Use ExportRun to record the
// phase derived from the log.
func (s *Store) WriteEvent(ctx context.Context, runID string, seq int64, ev ir.Event) (id string, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("write event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := ensureRun(ctx, tx, runID); err != nil {
		return "", false, fmt.Errorf("write event: %w", err)
	}

	id, inserted, err = insertEvent(ctx, tx, runID, seq, ev)
	if err != nil {
		return "", false, fmt.Errorf("write event: %w", err)
	}

	if err := refreshEventCount(ctx, tx, runID); err != nil {
		return "", false, fmt.Errorf("write event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("write event: commit: %w", err)
	}
	return id, inserted, nil
}

// ExportResult reports what ExportRun changed.
type ExportResult struct {
	RunID    string `json:"run_id"`
	Phase    string `json:"phase"`
	Events   int    `json:"events"`   // events in the run
	Inserted int    `json:"inserted"` // events not previously indexed
}

// ExportRun writes every applied event of r, in order, and records its phase.
// The whole export is one transaction. Exporting the same run again only
// inserts events appended since the previous export.
func (s *Store) ExportRun(ctx context.Context, r *run.Run) (ExportResult, error) {
	res := ExportResult{
		RunID: r.ID(),
		Phase: string(r.Phase()),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("export run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := ensureRun(ctx, tx, r.ID()); err != nil {
		return res, fmt.Errorf("export run: %w", err)
	}

	for i, ev := range r.Events() {
		_, inserted, err := insertEvent(ctx, tx, r.ID(), int64(i+1), ev)
		if err != nil {
			return res, fmt.Errorf("export run: %w", err)
		}
		res.Events++
		if inserted {
			res.Inserted++
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET phase = ? WHERE run_id = ?
	`, res.Phase, r.ID()); err != nil {
		return res, fmt.Errorf("export run: update phase: %w", err)
	}

	if err := refreshEventCount(ctx, tx, r.ID()); err != nil {
		return res, fmt.Errorf("export run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("export run: commit: %w", err)
	}
	return res, nil
}

func ensureRun(ctx context.Context, db execer, runID string) error {
	if runID == "" {
		return fmt.Errorf("empty run id")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (run_id) VALUES (?)
		ON CONFLICT(run_id) DO NOTHING
	`, runID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, db execer, runID string, seq int64, ev ir.Event) (string, bool, error) {
	if err := ir.ValidateEvent(ev); err != nil {
		return "", false, err
	}

	id, err := ir.EventID(ev)
	if err != nil {
		return "", false, err
	}

	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return "", false, err
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO events (run_id, id, seq, type, version, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`,
		runID,
		id,
		seq,
		string(ev.Type),
		ev.Version,
		payload,
	)
	if err != nil {
		return "", false, fmt.Errorf("insert event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("insert event: rows affected: %w", err)
	}
	return id, rows > 0, nil
}

func refreshEventCount(ctx context.Context, db execer, runID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE runs
		SET event_count = (SELECT COUNT(*) FROM events WHERE run_id = ?)
		WHERE run_id = ?
	`, runID, runID)
	if err != nil {
		return fmt.Errorf("update event count: %w", err)
	}
	return nil
}
