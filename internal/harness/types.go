package harness

import (
	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/machine"
	"github.com/roach88/runledger/internal/run"
)

// Trace entry kinds.
const (
	KindDispatch = "dispatch"
	KindRejected = "rejected"
	KindReopen   = "reopen"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step    int            `json:"step"`
	Kind    string         `json:"kind"` // dispatch, rejected or reopen
	Type    ir.EventType   `json:"type,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	ID      string         `json:"id,omitempty"`
	New     bool           `json:"new"`
	Phase   machine.Phase  `json:"phase"`
	Events  int            `json:"events"` // run length after the step
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every flow step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expect and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Phase is the run's phase after the flow.
	Phase machine.Phase `json:"phase"`

	// Order is the run's event identities after the flow.
	Order []string `json:"order"`

	// Stats come from the last hydration of the run.
	Stats run.HydrateStats `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Order:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddDispatchTrace adds a dispatch attempt to the trace.
func (r *Result) AddDispatchTrace(step int, ev ir.Event, res run.DispatchResult, phase machine.Phase, events int) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    step,
		Kind:    KindDispatch,
		Type:    ev.Type,
		Payload: ev.Payload,
		ID:      res.ID,
		New:     res.NewAction,
		Phase:   phase,
		Events:  events,
	})
}

// AddRejectedTrace adds a dispatch that failed validation.
func (r *Result) AddRejectedTrace(step int, ev ir.Event, phase machine.Phase, events int) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    step,
		Kind:    KindRejected,
		Type:    ev.Type,
		Payload: ev.Payload,
		Phase:   phase,
		Events:  events,
	})
}

// AddReopenTrace adds a rehydration to the trace.
func (r *Result) AddReopenTrace(step int, phase machine.Phase, events int) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:   step,
		Kind:   KindReopen,
		Phase:  phase,
		Events: events,
	})
}
