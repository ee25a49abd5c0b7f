package evaluator

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/runledger/internal/config"
	"github.com/roach88/runledger/internal/ir"
)

// Status is the evaluation outcome of one requirement.
type Status string

const (
	StatusDone    Status = "done"
	StatusPartial Status = "partial"
	StatusTodo    Status = "todo"
	StatusBlocked Status = "blocked"
)

// Verdict summarizes an evaluation.
type Verdict string

const (
	VerdictComplete   Verdict = "complete"
	VerdictDelta      Verdict = "delta"
	VerdictNeedsInput Verdict = "needs_input"
)

// Ledger entry reasons.
const (
	ReasonDone    = "Requirement is explicitly evidenced in agent output."
	ReasonPartial = "Requirement has partial evidence but remains incomplete."
	ReasonTodo    = "No evidence found in agent output."
	ReasonRepeat  = "Repeat request detected for an already-evidenced requirement; operator input required."
)

// Citation prefixes.
const (
	CitationRequirement = "requirement:"
	CitationMatch       = "agent_output:match:"
	CitationKeyword     = "agent_output:keyword:"
	CitationPriorDone   = "prior_done:"
	CitationRepeat      = "ledger:repeat_request_detected"
)

// TicketIDLength is the number of hex characters in a delta ticket id.
const TicketIDLength = 16

// ErrInvalidRequirement is returned for requirement lists with an empty or
// repeated id.
var ErrInvalidRequirement = errors.New("invalid requirement")

// Requirement is one item the agent output is checked against.
type Requirement struct {
	ID           string `json:"id" yaml:"id"`
	Description  string `json:"description" yaml:"description"`
	EvidencePath string `json:"evidence_path,omitempty" yaml:"evidence_path"`
}

// LedgerEntry records the status of one requirement and the evidence behind it.
type LedgerEntry struct {
	RequirementID string   `json:"requirement_id"`
	Status        Status   `json:"status"`
	Reason        string   `json:"reason"`
	Citations     []string `json:"citations"`
}

// DeltaTicket lists the requirements that still need work.
type DeltaTicket struct {
	TicketID    string        `json:"ticket_id"`
	Outstanding []LedgerEntry `json:"outstanding"`
}

// Report is the result of one evaluation.
type Report struct {
	Complete    bool          `json:"complete"`
	Verdict     Verdict       `json:"verdict"`
	Ledger      []LedgerEntry `json:"ledger"`
	NeedsInput  []LedgerEntry `json:"needs_input,omitempty"`
	DeltaTicket *DeltaTicket  `json:"delta_ticket,omitempty"`
}

// Paths names the files an Evaluator maintains. An empty path is skipped.
type Paths struct {
	Ledger      string
	DeltaTicket string
}

// Evaluator scores agent output against requirements.
// It is not safe for concurrent use on the same paths.
type Evaluator struct {
	paths  Paths
	policy config.Policy
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPolicy restricts where ledger and ticket files may be written.
func WithPolicy(p config.Policy) Option {
	return func(e *Evaluator) {
		e.policy = p
	}
}

// WithLogger sets the logger used for ledger diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an Evaluator maintaining the files in paths.
func New(paths Paths, opts ...Option) *Evaluator {
	e := &Evaluator{
		paths:  paths,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores output against reqs, rewrites the ledger and writes or
// removes the delta ticket.
//
// Requirements are evaluated in id order. A requirement that an earlier
// ledger records as done and that is not done now is blocked. Policy
// violations are reported before any file is touched and wrap
// config.ErrPathNotAllowed.
func (e *Evaluator) Evaluate(output string, reqs []Requirement) (Report, error) {
	if err := checkRequirements(reqs); err != nil {
		return Report{}, err
	}
	for _, path := range []string{e.paths.Ledger, e.paths.DeltaTicket} {
		if path == "" {
			continue
		}
		if err := e.policy.Check(path); err != nil {
			return Report{}, err
		}
	}

	text := normalize(output)
	prior := e.loadPriorDone()

	ordered := slices.Clone(reqs)
	col := collate.New(language.Und)
	slices.SortStableFunc(ordered, func(a, b Requirement) int {
		if c := col.CompareString(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	ledger := make([]LedgerEntry, 0, len(ordered))
	for _, req := range ordered {
		entry := evaluateRequirement(req, text)
		ledger = append(ledger, applyRepeatRule(entry, prior[req.ID]))
	}
	if err := writeCanonical(e.paths.Ledger, ledger); err != nil {
		return Report{}, err
	}

	var needsInput, outstanding []LedgerEntry
	for _, entry := range ledger {
		switch entry.Status {
		case StatusBlocked:
			needsInput = append(needsInput, entry)
		case StatusPartial, StatusTodo:
			outstanding = append(outstanding, entry)
		}
	}

	report := Report{Ledger: ledger, NeedsInput: needsInput}
	if len(outstanding) == 0 {
		if err := removeIfExists(e.paths.DeltaTicket); err != nil {
			return Report{}, err
		}
		report.Complete = len(needsInput) == 0
		report.Verdict = VerdictNeedsInput
		if report.Complete {
			report.Verdict = VerdictComplete
		}
		e.logger.Debug("evaluation finished", "verdict", report.Verdict, "requirements", len(ledger))
		return report, nil
	}

	id, err := TicketID(outstanding)
	if err != nil {
		return Report{}, err
	}
	ticket := &DeltaTicket{TicketID: id, Outstanding: outstanding}
	if err := writeCanonical(e.paths.DeltaTicket, ticket); err != nil {
		return Report{}, err
	}
	report.Verdict = VerdictDelta
	report.DeltaTicket = ticket
	e.logger.Debug("evaluation finished", "verdict", report.Verdict,
		"requirements", len(ledger), "outstanding", len(outstanding), "ticket", id)
	return report, nil
}

// TicketID derives the delta ticket id from its outstanding entries.
func TicketID(outstanding []LedgerEntry) (string, error) {
	hash, err := ir.ContentHash(outstanding)
	if err != nil {
		return "", fmt.Errorf("ticket id: %w", err)
	}
	return hash[:TicketIDLength], nil
}

func checkRequirements(reqs []Requirement) error {
	seen := make(map[string]bool, len(reqs))
	for i, req := range reqs {
		if req.ID == "" {
			return fmt.Errorf("%w: requirement %d has no id", ErrInvalidRequirement, i)
		}
		if seen[req.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidRequirement, req.ID)
		}
		seen[req.ID] = true
	}
	return nil
}

var keywordPattern = regexp.MustCompile(`[a-z0-9]{4,}`)

func evaluateRequirement(req Requirement, text string) LedgerEntry {
	description := normalize(req.Description)
	citations := make([]string, 0, 2)
	if req.EvidencePath != "" {
		citations = append(citations, CitationRequirement+req.EvidencePath)
	}

	if strings.Contains(text, normalize(req.ID)) ||
		(description != "" && strings.Contains(text, description)) {
		return LedgerEntry{
			RequirementID: req.ID,
			Status:        StatusDone,
			Reason:        ReasonDone,
			Citations:     append(citations, CitationMatch+req.ID),
		}
	}

	var matched []string
	for _, word := range keywords(description) {
		if strings.Contains(text, word) {
			matched = append(matched, CitationKeyword+word)
		}
	}
	if len(matched) > 0 {
		return LedgerEntry{
			RequirementID: req.ID,
			Status:        StatusPartial,
			Reason:        ReasonPartial,
			Citations:     append(citations, matched...),
		}
	}

	return LedgerEntry{
		RequirementID: req.ID,
		Status:        StatusTodo,
		Reason:        ReasonTodo,
		Citations:     citations,
	}
}

// applyRepeatRule blocks an entry that is not done when an earlier ledger
// already recorded it as done.
func applyRepeatRule(entry LedgerEntry, priorDone []string) LedgerEntry {
	if priorDone == nil || entry.Status == StatusDone {
		return entry
	}
	citations := slices.Clone(entry.Citations)
	citations = append(citations, CitationRepeat)
	for _, c := range priorDone {
		citations = append(citations, CitationPriorDone+c)
	}
	return LedgerEntry{
		RequirementID: entry.RequirementID,
		Status:        StatusBlocked,
		Reason:        ReasonRepeat,
		Citations:     sortedUnique(citations),
	}
}

// keywords returns the distinct words of at least four ASCII letters or
// digits, sorted.
func keywords(text string) []string {
	return sortedUnique(keywordPattern.FindAllString(text, -1))
}

// normalize folds case, composes to NFC and collapses whitespace so that
// matching does not depend on how the agent spelled or wrapped its text.
func normalize(s string) string {
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

func sortedUnique(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// loadPriorDone maps requirement ids to the citations of their last done
// evidence. An unreadable or malformed ledger counts as no history.
func (e *Evaluator) loadPriorDone() map[string][]string {
	prior := make(map[string][]string)
	if e.paths.Ledger == "" {
		return prior
	}
	data, err := os.ReadFile(e.paths.Ledger)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("prior ledger unreadable", "path", e.paths.Ledger, "error", err)
		}
		return prior
	}
	doc, err := ir.DecodeJSON(data)
	if err != nil {
		e.logger.Warn("prior ledger malformed", "path", e.paths.Ledger, "error", err)
		return prior
	}
	entries, ok := doc.([]any)
	if !ok {
		return prior
	}

	for _, raw := range entries {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := obj["requirement_id"].(string)
		status, _ := obj["status"].(string)
		citations := stringList(obj["citations"])
		if id == "" || len(citations) == 0 {
			continue
		}
		switch Status(status) {
		case StatusDone:
			prior[id] = sortedUnique(citations)
		case StatusBlocked:
			var done []string
			for _, c := range citations {
				if rest, ok := strings.CutPrefix(c, CitationPriorDone); ok {
					done = append(done, rest)
				}
			}
			if len(done) > 0 {
				prior[id] = sortedUnique(done)
			}
		}
	}
	return prior
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// writeCanonical writes v as canonical JSON plus a trailing newline.
func writeCanonical(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
