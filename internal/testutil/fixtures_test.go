package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/runledger/internal/ir"
)

func TestEv(t *testing.T) {
	ev := Ev(ir.EventUserAction, "step", 2, "action", "click")
	assert.Equal(t, ir.EventUserAction, ev.Type)
	assert.Equal(t, ir.EventVersion, ev.Version)
	assert.Equal(t, map[string]any{"step": 2, "action": "click"}, ev.Payload)

	assert.Panics(t, func() { Ev(ir.EventSysStart, "dangling") })
}

func TestTornRecord(t *testing.T) {
	ev := Ev(ir.EventSysStop, "step", 3)
	full := Record(t, ev)
	torn := TornRecord(t, ev, 1)

	assert.Equal(t, full[:len(full)-1], torn)
	_, err := ir.DecodeRecord([]byte(torn))
	assert.ErrorIs(t, err, ir.ErrMalformedRecord)
}

func TestFileHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.jsonl")

	WriteFile(t, path, Lines("a", "b"))
	AppendFile(t, path, "c")

	assert.Equal(t, []string{"a", "b", "c"}, ReadLines(t, path))
	assert.Equal(t, "", Lines())
}
