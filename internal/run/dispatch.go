package run

import (
	"fmt"
	"os"

	"github.com/roach88/runledger/internal/ir"
	"github.com/roach88/runledger/internal/machine"
)

// Dispatch appends ev to the run if it is new.
//
// If an event with the same identity was already applied, Dispatch returns
// NewAction=false with that identity and touches neither the log nor the
// state machine. Otherwise the raw record is appended to the log in a single
// write, then the event is indexed and applied.
//
// Errors: *ir.ValidationError for an event that replay would discard, and
// *PersistenceError when the directory or log cannot be written. In both
// cases the in-memory state is unchanged.
func (r *Run) Dispatch(ev ir.Event) (DispatchResult, error) {
	if err := ir.ValidateEvent(ev); err != nil {
		return DispatchResult{}, err
	}

	record, err := ir.EncodeRecord(ev)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch: %w", err)
	}

	// Identify the event exactly as a later hydrate will see it.
	stored, id, err := decodeLine(record)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch: %w", err)
	}

	if r.Has(id) {
		return DispatchResult{NewAction: false, ID: id}, nil
	}

	if err := r.appendRecord(record); err != nil {
		return DispatchResult{}, err
	}

	r.record(id, stored)
	r.apply(stored)
	r.logger.Debug("event dispatched", "run", r.id, "type", stored.Type, "id", id, "phase", r.Phase())

	return DispatchResult{NewAction: true, ID: id}, nil
}

// appendRecord writes record plus '\n' to the log with one Write call.
func (r *Run) appendRecord(record []byte) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return newPersistenceError("mkdir", r.dir, err)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return newPersistenceError("open", r.path, err)
	}

	buf := make([]byte, 0, len(record)+2)
	if r.needsNewline {
		// Terminate the torn fragment so the new record gets its own line.
		buf = append(buf, '\n')
	}
	buf = append(buf, record...)
	buf = append(buf, '\n')

	if _, err := f.Write(buf); err != nil {
		f.Close()
		// A short write may have left a fragment behind.
		r.needsNewline = true
		return newPersistenceError("append", r.path, err)
	}
	if r.syncWrites {
		if err := f.Sync(); err != nil {
			f.Close()
			return newPersistenceError("sync", r.path, err)
		}
	}
	if err := f.Close(); err != nil {
		return newPersistenceError("close", r.path, err)
	}

	r.needsNewline = false
	return nil
}

// decodeLine decodes a log line and computes its identity.
// Both hydrate and Dispatch go through here so they agree on identities.
func decodeLine(line []byte) (ir.Event, string, error) {
	ev, err := ir.DecodeRecord(line)
	if err != nil {
		return ir.Event{}, "", err
	}
	id, err := ir.EventID(ev)
	if err != nil {
		return ir.Event{}, "", fmt.Errorf("%w: %v", ir.ErrMalformedRecord, err)
	}
	return ev, id, nil
}

// apply advances the state machine for ev.
//
// Unmapped (event, phase) combinations are not forwarded, and an illegal
// transition is logged and dropped rather than returned. Replay must succeed
// for any historical order of events.
func (r *Run) apply(ev ir.Event) {
	in, ok := inputFor(ev.Type, r.machine.Phase())
	if !ok {
		return
	}
	if err := r.machine.Transition(in); err != nil {
		r.logger.Debug("ignoring transition", "run", r.id, "type", ev.Type, "error", err)
	}
}

// inputFor maps an event type in the current phase to a machine input.
// The second result is false when the event causes no transition.
func inputFor(t ir.EventType, phase machine.Phase) (machine.Input, bool) {
	switch t {
	case ir.EventSysStart:
		return machine.InputStart, phase == machine.PhaseIdle
	case ir.EventSysStop:
		return machine.InputComplete, phase == machine.PhaseRunning
	case ir.EventUserAction:
		// A user action while idle is taken as an implicit start. This also
		// covers actions that arrive before their SYS_START.
		return machine.InputStart, phase == machine.PhaseIdle
	default:
		return "", false
	}
}
