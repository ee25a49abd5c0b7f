package evaluator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runledger/internal/config"
	"github.com/roach88/runledger/internal/ir"
)

// newTestEvaluator returns an evaluator writing into a fresh directory.
func newTestEvaluator(t *testing.T, opts ...Option) (*Evaluator, Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := Paths{
		Ledger:      filepath.Join(dir, "fixtures", "ledger.json"),
		DeltaTicket: filepath.Join(dir, "delta", "delta.json"),
	}
	return New(paths, opts...), paths
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func statuses(ledger []LedgerEntry) []string {
	out := make([]string, 0, len(ledger))
	for _, e := range ledger {
		out = append(out, e.RequirementID+":"+string(e.Status))
	}
	return out
}

func ids(entries []LedgerEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.RequirementID)
	}
	return out
}

func TestEvaluate_LedgerStatuses(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	reqs := []Requirement{
		{ID: "C-TODO", Description: "Synthesize websocket retry policy artifact", EvidencePath: "docs/evidence/c-todo.txt"},
		{ID: "A-DONE", Description: "Stable evidence pointer is present", EvidencePath: "docs/evidence/a-done.txt"},
		{ID: "B-PARTIAL", Description: "Generate delta ticket for outstanding requirement", EvidencePath: "docs/evidence/b-partial.txt"},
	}
	output := "A-DONE completed with stable evidence pointer and we generate delta ticket now."

	report, err := ev.Evaluate(output, reqs)
	require.NoError(t, err)

	assert.False(t, report.Complete)
	assert.Equal(t, VerdictDelta, report.Verdict)
	assert.Equal(t, []string{"A-DONE:done", "B-PARTIAL:partial", "C-TODO:todo"}, statuses(report.Ledger))

	assert.Equal(t, []string{"requirement:docs/evidence/a-done.txt", "agent_output:match:A-DONE"},
		report.Ledger[0].Citations)
	assert.Equal(t, []string{
		"requirement:docs/evidence/b-partial.txt",
		"agent_output:keyword:delta",
		"agent_output:keyword:generate",
		"agent_output:keyword:ticket",
	}, report.Ledger[1].Citations)
	assert.Equal(t, []string{"requirement:docs/evidence/c-todo.txt"}, report.Ledger[2].Citations)

	assert.Equal(t, ReasonDone, report.Ledger[0].Reason)
	assert.Equal(t, ReasonPartial, report.Ledger[1].Reason)
	assert.Equal(t, ReasonTodo, report.Ledger[2].Reason)
	assert.Empty(t, report.NeedsInput)
}

func TestEvaluate_Matching(t *testing.T) {
	tests := []struct {
		name   string
		req    Requirement
		output string
		want   Status
	}{
		{"id in other case", Requirement{ID: "REQ-7", Description: "unrelated"}, "finished req-7 today", StatusDone},
		{"description across line breaks", Requirement{ID: "R1", Description: "Stable evidence pointer"},
			"the stable\n\tevidence   pointer is here", StatusDone},
		{"decomposed accents", Requirement{ID: "R1", Description: "caf\u00e9 menu"},
			"CAFE\u0301 MENU updated", StatusDone},
		{"case folding", Requirement{ID: "R1", Description: "strasse check"}, "STRAßE CHECK passed", StatusDone},
		{"short words are not keywords", Requirement{ID: "R1", Description: "add the api key"}, "add the api", StatusTodo},
		{"one keyword", Requirement{ID: "R1", Description: "rotate signing keys"}, "keys were listed", StatusPartial},
		{"empty description", Requirement{ID: "R1"}, "anything at all", StatusTodo},
		{"empty output", Requirement{ID: "R1", Description: "something"}, "", StatusTodo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := New(Paths{}).Evaluate(tt.output, []Requirement{tt.req})
			require.NoError(t, err)
			require.Len(t, report.Ledger, 1)
			assert.Equal(t, tt.want, report.Ledger[0].Status)
		})
	}
}

func TestEvaluate_DeltaTicketIsDeterministic(t *testing.T) {
	reqs := []Requirement{
		{ID: "REQ-01", Description: "done requirement marker"},
		{ID: "REQ-02", Description: "partial outstanding marker"},
		{ID: "REQ-03", Description: "missing item marker"},
	}
	output := "REQ-01 done requirement marker plus partial outstanding details."

	evA, pathsA := newTestEvaluator(t)
	evB, pathsB := newTestEvaluator(t)
	reportA, err := evA.Evaluate(output, reqs)
	require.NoError(t, err)
	reportB, err := evB.Evaluate(output, reqs)
	require.NoError(t, err)

	assert.Equal(t, VerdictDelta, reportA.Verdict)
	assert.Equal(t, VerdictDelta, reportB.Verdict)
	assert.Equal(t, readFile(t, pathsA.Ledger), readFile(t, pathsB.Ledger))
	assert.Equal(t, readFile(t, pathsA.DeltaTicket), readFile(t, pathsB.DeltaTicket))

	require.NotNil(t, reportA.DeltaTicket)
	assert.Equal(t, []string{"REQ-02", "REQ-03"}, ids(reportA.DeltaTicket.Outstanding))
	assert.Len(t, reportA.DeltaTicket.TicketID, TicketIDLength)

	want, err := TicketID(reportA.DeltaTicket.Outstanding)
	require.NoError(t, err)
	assert.Equal(t, want, reportA.DeltaTicket.TicketID)
}

func TestEvaluate_FilesAreCanonical(t *testing.T) {
	ev, paths := newTestEvaluator(t)

	report, err := ev.Evaluate("nothing relevant", []Requirement{
		{ID: "REQ-B", Description: "second <item>"},
		{ID: "REQ-A", Description: "first & only"},
	})
	require.NoError(t, err)

	ledger, err := ir.MarshalCanonical(report.Ledger)
	require.NoError(t, err)
	assert.Equal(t, string(ledger)+"\n", readFile(t, paths.Ledger))

	ticket, err := ir.MarshalCanonical(report.DeltaTicket)
	require.NoError(t, err)
	assert.Equal(t, string(ticket)+"\n", readFile(t, paths.DeltaTicket))
	assert.True(t, strings.HasPrefix(string(ticket), `{"outstanding":[{"citations":[]`))
}

func TestEvaluate_DoneNeverInDeltaTicket(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	report, err := ev.Evaluate("DONE-01 already evidenced requirement is complete.", []Requirement{
		{ID: "DONE-01", Description: "already evidenced requirement"},
		{ID: "TODO-01", Description: "remaining requirement"},
	})
	require.NoError(t, err)

	assert.False(t, report.Complete)
	assert.Equal(t, VerdictDelta, report.Verdict)
	require.NotNil(t, report.DeltaTicket)
	assert.Equal(t, []string{"TODO-01"}, ids(report.DeltaTicket.Outstanding))
}

func TestEvaluate_RepeatRequestNeedsInput(t *testing.T) {
	ev, paths := newTestEvaluator(t)

	prior := []LedgerEntry{{
		RequirementID: "REQ-DONE",
		Status:        StatusDone,
		Reason:        "Previously completed with evidence.",
		Citations:     []string{"requirement:docs/evidence/req-done.txt", "agent_output:match:REQ-DONE"},
	}}
	require.NoError(t, writeCanonical(paths.Ledger, prior))

	reqs := []Requirement{{ID: "REQ-DONE", Description: "already done requirement"}}
	output := "Request repeats this work without adding new evidence."

	first, err := ev.Evaluate(output, reqs)
	require.NoError(t, err)
	assert.False(t, first.Complete)
	assert.Equal(t, VerdictNeedsInput, first.Verdict)
	assert.Nil(t, first.DeltaTicket)
	assert.NoFileExists(t, paths.DeltaTicket)
	assert.Equal(t, []string{"REQ-DONE"}, ids(first.NeedsInput))

	require.Len(t, first.Ledger, 1)
	assert.Equal(t, StatusBlocked, first.Ledger[0].Status)
	assert.Equal(t, ReasonRepeat, first.Ledger[0].Reason)
	assert.Equal(t, []string{
		"ledger:repeat_request_detected",
		"prior_done:agent_output:match:REQ-DONE",
		"prior_done:requirement:docs/evidence/req-done.txt",
	}, first.Ledger[0].Citations)

	ledgerAfterFirst := readFile(t, paths.Ledger)
	second, err := ev.Evaluate(output, reqs)
	require.NoError(t, err)
	assert.Equal(t, VerdictNeedsInput, second.Verdict)
	assert.Nil(t, second.DeltaTicket)
	assert.Equal(t, ledgerAfterFirst, readFile(t, paths.Ledger))
}

func TestEvaluate_RepeatWithNewEvidenceIsDone(t *testing.T) {
	ev, paths := newTestEvaluator(t)
	reqs := []Requirement{{ID: "REQ-9", Description: "ship the release notes"}}

	_, err := ev.Evaluate("REQ-9 shipped", reqs)
	require.NoError(t, err)

	report, err := ev.Evaluate("REQ-9 shipped again with notes", reqs)
	require.NoError(t, err)
	assert.Equal(t, VerdictComplete, report.Verdict)
	assert.Equal(t, []string{"REQ-9:done"}, statuses(report.Ledger))
	assert.NoFileExists(t, paths.DeltaTicket)
}

func TestEvaluate_CompleteRemovesStaleTicket(t *testing.T) {
	ev, paths := newTestEvaluator(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.DeltaTicket), 0o755))
	require.NoError(t, os.WriteFile(paths.DeltaTicket, []byte("{\"stale\":true}\n"), 0o644))

	report, err := ev.Evaluate("REQ-COMPLETE complete evidence present", []Requirement{
		{ID: "REQ-COMPLETE", Description: "complete evidence present"},
	})
	require.NoError(t, err)

	assert.True(t, report.Complete)
	assert.Equal(t, VerdictComplete, report.Verdict)
	assert.Nil(t, report.DeltaTicket)
	assert.NoFileExists(t, paths.DeltaTicket)
	assert.Equal(t, []string{"REQ-COMPLETE:done"}, statuses(report.Ledger))
}

func TestEvaluate_MalformedPriorLedgerIsIgnored(t *testing.T) {
	for name, content := range map[string]string{
		"not json":      "not json",
		"object":        `{"requirement_id":"R1","status":"done","citations":["x"]}`,
		"no citations":  `[{"requirement_id":"R1","status":"done","citations":[]}]`,
		"wrong entries": `[1,"two",{"status":"done"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			ev, paths := newTestEvaluator(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(paths.Ledger), 0o755))
			require.NoError(t, os.WriteFile(paths.Ledger, []byte(content), 0o644))

			report, err := ev.Evaluate("nothing", []Requirement{{ID: "R1", Description: "pending work"}})
			require.NoError(t, err)
			assert.Equal(t, VerdictDelta, report.Verdict)
			assert.Equal(t, []string{"R1:todo"}, statuses(report.Ledger))
		})
	}
}

func TestEvaluate_PolicyViolation(t *testing.T) {
	dir := t.TempDir()
	allowed := filepath.Join(dir, "allowed")
	policy := config.Policy{Whitelist: []string{allowed}}

	tests := []struct {
		name  string
		paths Paths
	}{
		{"ledger outside", Paths{Ledger: filepath.Join(dir, "ledger.json"), DeltaTicket: filepath.Join(allowed, "delta.json")}},
		{"ticket outside", Paths{Ledger: filepath.Join(allowed, "ledger.json"), DeltaTicket: filepath.Join(dir, "delta.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := New(tt.paths, WithPolicy(policy))
			_, err := ev.Evaluate("nothing", []Requirement{{ID: "R1", Description: "pending"}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrPathNotAllowed))
			assert.NoFileExists(t, tt.paths.Ledger)
			assert.NoFileExists(t, tt.paths.DeltaTicket)
		})
	}

	ev := New(Paths{Ledger: filepath.Join(allowed, "ledger.json")}, WithPolicy(policy))
	_, err := ev.Evaluate("R1", []Requirement{{ID: "R1"}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(allowed, "ledger.json"))
}

func TestEvaluate_InvalidRequirements(t *testing.T) {
	tests := []struct {
		name string
		reqs []Requirement
	}{
		{"empty id", []Requirement{{ID: "", Description: "x"}}},
		{"duplicate id", []Requirement{{ID: "A"}, {ID: "B"}, {ID: "A"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, paths := newTestEvaluator(t)
			_, err := ev.Evaluate("A B", tt.reqs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequirement))
			assert.NoFileExists(t, paths.Ledger)
		})
	}
}

func TestEvaluate_NoRequirements(t *testing.T) {
	ev, paths := newTestEvaluator(t)

	report, err := ev.Evaluate("whatever", nil)
	require.NoError(t, err)
	assert.True(t, report.Complete)
	assert.Equal(t, VerdictComplete, report.Verdict)
	assert.Equal(t, "[]\n", readFile(t, paths.Ledger))
}

func TestEvaluate_OrderIgnoresInputOrder(t *testing.T) {
	reqs := []Requirement{{ID: "b-2"}, {ID: "A-1"}, {ID: "a-3"}}

	report, err := New(Paths{}).Evaluate("", reqs)
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1", "a-3", "b-2"}, ids(report.Ledger))
}
