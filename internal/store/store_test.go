package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
	assert.Equal(t, []string{"run_id", "phase", "event_count"}, tableColumns(t, s.DB(), "runs"))
	assert.Equal(t, []string{"run_id", "id", "seq", "type", "version", "payload"}, tableColumns(t, s.DB(), "events"))

	indexes := tableIndexes(t, s.DB(), "events")
	assert.Contains(t, indexes, "idx_events_run_seq")
	assert.Contains(t, indexes, "idx_events_type")
}

func TestOpen_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.ExportRun(ctx, createTestRun(t, "run-1", startEvent, stopEvent))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for i := 0; i < 3; i++ {
		s, err = Open(path)
		require.NoError(t, err, "open %d", i)

		summary, err := s.GetRunSummary(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, 2, summary.EventCount)
		assert.Equal(t, "DONE", summary.Phase)
		require.NoError(t, s.Close())
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	mode, err := s.pragmaValue("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "memory", mode)

	_, inserted, err := s.WriteEvent(context.Background(), "run-1", 1, startEvent)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "runs.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open index")
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close(), "zero store")

	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.DB().Ping())
	require.NoError(t, s.Close())
	assert.NotPanics(t, func() { _ = s.Close() })
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for _, p := range pragmas {
		t.Run(p.name, func(t *testing.T) {
			got, err := s.pragmaValue(p.name)
			require.NoError(t, err)
			assert.Equal(t, p.want, got)
		})
	}
}

func TestConstraints(t *testing.T) {
	s := createTestStore(t)
	const insert = `INSERT INTO events (run_id, id, seq, type, version, payload) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.DB().Exec(insert, "missing-run", "abc", 1, "SYS_START", "1.0", "{}")
	assert.Error(t, err, "event without a run row violates the foreign key")

	_, err = s.DB().Exec(`INSERT INTO runs (run_id) VALUES ('r1')`)
	require.NoError(t, err)
	_, err = s.DB().Exec(insert, "r1", "abc", 1, "SYS_START", "1.0", "{}")
	require.NoError(t, err)
	_, err = s.DB().Exec(insert, "r1", "abc", 2, "SYS_START", "1.0", "{}")
	assert.Error(t, err, "(run_id, id) is the primary key")

	_, err = s.DB().Exec(`INSERT INTO runs (run_id) VALUES ('r2')`)
	require.NoError(t, err)
	_, err = s.DB().Exec(insert, "r2", "abc", 1, "SYS_START", "1.0", "{}")
	assert.NoError(t, err, "the same identity may appear in another run")
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	// Tables without the v1 index, as written before migrations existed.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NotContains(t, tableIndexes(t, db, "events"), "idx_events_type")
	require.NoError(t, db.Close())

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		require.NoError(t, err)

		version, err := s.pragmaValue("user_version")
		require.NoError(t, err)
		assert.Equal(t, "1", version)
		assert.Contains(t, tableIndexes(t, s.DB(), "events"), "idx_events_type")
		require.NoError(t, s.Close())
	}
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	require.NoError(t, err)
	return scanNames(t, rows)
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? ORDER BY name", table)
	require.NoError(t, err)
	return scanNames(t, rows)
}

func scanNames(t *testing.T, rows *sql.Rows) []string {
	t.Helper()
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
