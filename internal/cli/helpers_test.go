package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/runledger/internal/run"
)

// cmdResult captures one execution of the root command.
type cmdResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI with args against a fresh root command.
func execute(t *testing.T, args ...string) cmdResult {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cmdResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// response mirrors CLIResponse with a typed payload.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeResponse[T any](t *testing.T, stdout string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	return resp
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// dispatchAll sends each event type to runID, failing the test on error.
func dispatchAll(t *testing.T, dir, runID string, types ...string) {
	t.Helper()
	for _, typ := range types {
		res := execute(t, "--dir", dir, "dispatch", runID, "--type", typ)
		require.NoError(t, res.err, "dispatch %s: %s", typ, res.stdout)
	}
}

func readLogLines(t *testing.T, dir, runID string) []string {
	t.Helper()
	data, err := os.ReadFile(run.LogPath(dir, runID))
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func appendLog(t *testing.T, dir, runID, content string) {
	t.Helper()
	f, err := os.OpenFile(run.LogPath(dir, runID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
