package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/run"
	"github.com/roach88/runledger/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun opens a run in a temporary directory and dispatches events.
func createTestRun(t *testing.T, runID string, events ...ir.Event) *run.Run {
	t.Helper()
	return createTestRunIn(t, t.TempDir(), runID, events...)
}

// createTestRunIn opens runID under dir and dispatches events.
func createTestRunIn(t *testing.T, dir, runID string, events ...ir.Event) *run.Run {
	t.Helper()
	r, err := run.Open(runID, dir)
	if err != nil {
		t.Fatalf("run.Open() failed: %v", err)
	}
	for _, ev := range events {
		if _, err := r.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", ev.Type, err)
		}
	}
	return r
}

var (
	startEvent = testutil.Ev(ir.EventSysStart)
	stopEvent  = testutil.Ev(ir.EventSysStop)
)
