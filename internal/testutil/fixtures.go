// Package testutil provides run log fixtures shared by package tests.
package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/runledger/internal/ir"
)

// Ev builds a version 1.0 event from alternating key/value pairs.
//
// Example:
//
//	testutil.Ev(ir.EventUserAction, "step", 2, "action", "click")
func Ev(t ir.EventType, kv ...any) ir.Event {
	if len(kv)%2 != 0 {
		panic("testutil.Ev: odd number of key/value arguments")
	}
	payload := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		payload[kv[i].(string)] = kv[i+1]
	}
	return ir.NewEvent(t, payload)
}

// Record returns the raw log line for ev, without the trailing newline.
func Record(t testing.TB, ev ir.Event) string {
	t.Helper()
	b, err := ir.EncodeRecord(ev)
	require.NoError(t, err)
	return string(b)
}

// TornRecord returns the record for ev with its final cut bytes removed,
// simulating a crash in the middle of an append.
func TornRecord(t testing.TB, ev ir.Event, cut int) string {
	t.Helper()
	rec := Record(t, ev)
	require.Less(t, cut, len(rec), "cut must leave a non-empty fragment")
	return rec[:len(rec)-cut]
}

// WriteFile creates path (and its parent directories) with content.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// AppendFile appends content to path without adding a newline.
func AppendFile(t testing.TB, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// ReadLines returns the newline-separated lines of path. A final line
// without a terminating newline is included.
func ReadLines(t testing.TB, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

// Lines joins records into log content with a trailing newline.
func Lines(records ...string) string {
	if len(records) == 0 {
		return ""
	}
	return strings.Join(records, "\n") + "\n"
}
