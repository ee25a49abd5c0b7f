package ir

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the closed set of event kinds a run accepts.
type EventType string

const (
	EventSysStart   EventType = "SYS_START"
	EventSysStop    EventType = "SYS_STOP"
	EventUserAction EventType = "USER_ACTION"
)

// EventTypes lists every valid EventType in declaration order.
var EventTypes = []EventType{EventSysStart, EventSysStop, EventUserAction}

// Valid reports whether t is one of the declared event types.
func (t EventType) Valid() bool {
	switch t {
	case EventSysStart, EventSysStop, EventUserAction:
		return true
	default:
		return false
	}
}

// Event is a single state-changing occurrence in a run.
//
// Events are values: once built they are never mutated. Two events with the
// same type, version and payload content are the same event regardless of
// map insertion order, and collide to the same EventID.
type Event struct {
	Type    EventType      `json:"type"`
	Version string         `json:"version"`
	Payload map[string]any `json:"payload"`
}

// NewEvent builds a version 1.0 event. A nil payload becomes the empty object.
func NewEvent(t EventType, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Type: t, Version: EventVersion, Payload: payload}
}

// MarshalJSON writes the raw (non-canonical) record form. A nil payload is
// written as {} so the record decodes back to the same identity.
func (e Event) MarshalJSON() ([]byte, error) {
	type record Event
	r := record(e)
	if r.Payload == nil {
		r.Payload = map[string]any{}
	}
	return json.Marshal(r)
}

// canonicalMap is the value hashed for EventID.
func (e Event) canonicalMap() map[string]any {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"type":    string(e.Type),
		"version": e.Version,
		"payload": payload,
	}
}

// ErrMalformedRecord marks a run log line that is not a complete, well-formed
// event record. Replay skips such lines; it is never surfaced past hydrate.
var ErrMalformedRecord = errors.New("malformed event record")

// ValidationError describes an event that must not be written to a run log.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Message)
}

// IsValidationError returns true if err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateEvent checks the envelope and that the payload is JSON-compatible.
// An event that fails here would be discarded as malformed on the next
// replay, so writers must reject it up front.
func ValidateEvent(ev Event) error {
	if !ev.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown event type %q", ev.Type)}
	}
	if ev.Version != EventVersion {
		return &ValidationError{Field: "version", Message: fmt.Sprintf("unsupported version %q (want %q)", ev.Version, EventVersion)}
	}
	if _, err := MarshalCanonical(ev.canonicalMap()); err != nil {
		return &ValidationError{Field: "payload", Message: err.Error()}
	}
	return nil
}

// EncodeRecord returns the raw record bytes for ev, without a trailing newline.
func EncodeRecord(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses one run log line into an Event.
//
// A record is well-formed when it is a single JSON object with a known
// "type", "version" equal to EventVersion, and an object "payload".
// Unknown top-level fields are ignored. Numbers decode as json.Number so the
// canonical encoding matches the value that was originally dispatched.
// All failures wrap ErrMalformedRecord.
func DecodeRecord(line []byte) (Event, error) {
	v, err := DecodeJSON(line)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Event{}, fmt.Errorf("%w: record is not an object", ErrMalformedRecord)
	}

	typ, _ := obj["type"].(string)
	if !EventType(typ).Valid() {
		return Event{}, fmt.Errorf("%w: unknown type %v", ErrMalformedRecord, obj["type"])
	}
	version, _ := obj["version"].(string)
	if version != EventVersion {
		return Event{}, fmt.Errorf("%w: unsupported version %v", ErrMalformedRecord, obj["version"])
	}
	payload, ok := obj["payload"].(map[string]any)
	if !ok {
		return Event{}, fmt.Errorf("%w: payload is not an object", ErrMalformedRecord)
	}

	return Event{Type: EventType(typ), Version: version, Payload: payload}, nil
}
