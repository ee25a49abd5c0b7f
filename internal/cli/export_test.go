package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runledger/internal/store"
)

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "runs.db")
	dispatchAll(t, dir, "run-1", "SYS_START", "SYS_STOP")

	res := execute(t, "--dir", dir, "--format", "json", "export", "run-1", "--db", db)
	require.NoError(t, res.err)

	resp := decodeResponse[ExportOutput](t, res.stdout)
	assert.Equal(t, db, resp.Data.Database)
	assert.Equal(t, []store.ExportResult{
		{RunID: "run-1", Phase: "DONE", Events: 2, Inserted: 2},
	}, resp.Data.Runs)

	// A second export adds nothing.
	res = execute(t, "--dir", dir, "export", "run-1", "--db", db)
	require.NoError(t, res.err)
	assert.Equal(t, "run-1: 2 event(s), 0 new, phase DONE\n", res.stdout)

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.ReadRunEvents(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sysStartID, rows[0].ID)
}

func TestExportCommand_All(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "runs.db")
	dispatchAll(t, dir, "run-a", "SYS_START")
	dispatchAll(t, dir, "run-b", "USER_ACTION")

	res := execute(t, "--dir", dir, "export", "--all", "--db", db)
	require.NoError(t, res.err)
	assert.Equal(t, "run-a: 1 event(s), 1 new, phase RUNNING\nrun-b: 1 event(s), 1 new, phase RUNNING\n", res.stdout)
}

func TestExportCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("no runs named", func(t *testing.T) {
		res := execute(t, "--dir", dir, "export", "--db", filepath.Join(dir, "x.db"))
		require.Error(t, res.err)
		assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	})

	t.Run("db required", func(t *testing.T) {
		res := execute(t, "--dir", dir, "export", "run-1")
		require.Error(t, res.err)
	})

	t.Run("db outside whitelist", func(t *testing.T) {
		cfgPath := writeTestFile(t, t.TempDir(), "runledger.yaml",
			"policy:\n  whitelist:\n    - "+dir+"\n")
		res := execute(t, "--config", cfgPath, "--dir", dir, "export", "run-1",
			"--db", filepath.Join(t.TempDir(), "runs.db"))
		require.Error(t, res.err)
		assert.Contains(t, res.stdout, "Error ["+ErrCodePolicy+"]")
	})

	t.Run("db not openable", func(t *testing.T) {
		res := execute(t, "--dir", dir, "export", "run-1",
			"--db", filepath.Join(dir, "missing", "deeper", "runs.db"))
		require.Error(t, res.err)
		assert.Contains(t, res.stdout, "Error ["+ErrCodeExport+"]")
	})
}
