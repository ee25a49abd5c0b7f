package run

import (
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/machine"
)

// DispatchResult reports the outcome of Dispatch.
type DispatchResult struct {
	NewAction bool   `json:"new_action"` // false when the event was already in the log
	ID        string `json:"id"`         // identity of the dispatched event
}

// HydrateStats describes what Open found in the log.
type HydrateStats struct {
	Lines            int  `json:"lines"`             // non-blank lines examined
	Applied          int  `json:"applied"`           // records replayed
	Discarded        int  `json:"discarded"`         // lines that were not well-formed records
	Duplicates       int  `json:"duplicates"`        // records whose identity was already replayed
	UnterminatedTail bool `json:"unterminated_tail"` // the file did not end with a newline
}

// Run is the in-memory state of one workflow run, backed by its log.
type Run struct {
	id   string
	dir  string
	path string

	machine *machine.Machine
	events  map[string]ir.Event
	order   []string

	stats HydrateStats

	// needsNewline is set when the log does not end in '\n', so the next
	// append must first terminate the dangling fragment.
	needsNewline bool

	syncWrites bool
	logger     *slog.Logger
}

// Option configures a Run.
type Option func(*Run)

// WithLogger sets the logger used for replay diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSync makes every append fsync the log before Dispatch returns.
func WithSync(enabled bool) Option {
	return func(r *Run) {
		r.syncWrites = enabled
	}
}

// Open constructs the run for runID under dir and hydrates it from its log.
//
// A missing log yields an empty run in phase IDLE; nothing is created on disk
// until the first Dispatch. Malformed lines never cause an error. The only
// errors are ErrInvalidRunID and a *PersistenceError when the log exists but
// cannot be read.
func Open(runID, dir string, opts ...Option) (*Run, error) {
	if err := ValidateRunID(runID); err != nil {
		return nil, err
	}

	r := &Run{
		id:      runID,
		dir:     dir,
		path:    LogPath(dir, runID),
		machine: machine.New(),
		events:  make(map[string]ir.Event),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.hydrate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.id
}

// Phase returns the current lifecycle phase.
func (r *Run) Phase() machine.Phase {
	return r.machine.Phase()
}

// Order returns the identities of all applied events, in application order.
// The returned slice is a copy.
func (r *Run) Order() []string {
	return slices.Clone(r.order)
}

// Len returns the number of applied events.
func (r *Run) Len() int {
	return len(r.order)
}

// Has reports whether an event with identity id has been applied.
func (r *Run) Has(id string) bool {
	_, ok := r.events[id]
	return ok
}

// Event returns the applied event with identity id.
func (r *Run) Event(id string) (ir.Event, bool) {
	ev, ok := r.events[id]
	return ev, ok
}

// Events returns all applied events in application order.
func (r *Run) Events() []ir.Event {
	out := make([]ir.Event, len(r.order))
	for i, id := range r.order {
		out[i] = r.events[id]
	}
	return out
}

// Stats returns what hydrate found when the run was opened.
func (r *Run) Stats() HydrateStats {
	return r.stats
}

// record adds ev to the index and the order.
func (r *Run) record(id string, ev ir.Event) {
	r.events[id] = ev
	r.order = append(r.order, id)
}
