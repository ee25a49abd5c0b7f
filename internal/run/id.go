package run

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// LogSuffix is appended to the run id to name its log file.
const LogSuffix = ".jsonl"

// NewRunID generates a time-sortable UUIDv7 run id.
//
// Format: "01890a5d-ac96-774b-bcce-b302099a8057" (36 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidateRunID rejects ids that would not name a single file directly
// inside the persistence directory.
func ValidateRunID(runID string) error {
	switch {
	case runID == "":
		return fmt.Errorf("%w: empty", ErrInvalidRunID)
	case runID == "." || runID == "..":
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	case strings.ContainsAny(runID, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidRunID, runID)
	}
	return nil
}

// LogPath returns the log file path for runID under dir.
func LogPath(dir, runID string) string {
	return filepath.Join(dir, runID+LogSuffix)
}

// List returns the ids of all runs with a log in dir, sorted.
// A missing directory has no runs.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, newPersistenceError("read", dir, err)
	}

	ids := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, LogSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, LogSuffix)
		if ValidateRunID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
