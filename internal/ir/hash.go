package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IDLength is the length of every content-addressed identity (hex SHA-256).
const IDLength = sha256.Size * 2

// ContentHash computes the content-addressed identity of any JSON-compatible
// value: lowercase hex SHA-256 of its canonical encoding.
//
// Values that differ only in object key order hash identically.
func ContentHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// EventID computes the identity of an event.
// The ID is stable across restarts and replays: it is a pure function of the
// event's type, version and payload content. This is the only equality used
// for deduplication; events are never compared field by field.
func EventID(ev Event) (string, error) {
	id, err := ContentHash(ev.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return id, nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when the payload is known to be JSON-compatible.
func MustEventID(ev Event) string {
	id, err := EventID(ev)
	if err != nil {
		panic(err)
	}
	return id
}
