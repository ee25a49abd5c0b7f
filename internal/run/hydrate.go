package run

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
)

// hydrate replays the log into r. Only I/O errors are returned.
func (r *Run) hydrate() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return newPersistenceError("read", r.path, err)
	}

	if len(data) > 0 && data[len(data)-1] != '\n' {
		r.stats.UnterminatedTail = true
		r.needsNewline = true
	}

	for i, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		r.stats.Lines++

		ev, id, err := decodeLine(line)
		if err != nil {
			r.stats.Discarded++
			r.logger.Debug("discarding malformed record",
				"run", r.id, "line", i+1, "error", err)
			continue
		}

		// First occurrence wins. Dispatch never writes a known identity,
		// so this only triggers on hand-edited logs.
		if r.Has(id) {
			r.stats.Duplicates++
			r.logger.Debug("skipping duplicate record", "run", r.id, "line", i+1, "id", id)
			continue
		}

		r.record(id, ev)
		r.apply(ev)
		r.stats.Applied++
	}

	r.logger.Debug("run hydrated",
		"run", r.id,
		"applied", r.stats.Applied,
		"discarded", r.stats.Discarded,
		"phase", r.Phase())
	return nil
}
