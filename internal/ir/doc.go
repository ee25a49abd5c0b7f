// Package ir provides the canonical event representation for runledger.
//
// This package has no internal imports. Every other internal package imports
// ir, which keeps event encoding and identity as the foundational layer.
//
// Key design constraints:
//   - Event identity is SHA-256 over the canonical encoding, never over the
//     raw bytes written to the run log
//   - Canonical encoding sorts object keys by UTF-16 code units, recursively
//   - Strings are encoded as given, never Unicode-normalized: two spellings
//     of the same text are two different events
//   - Payloads are open mappings of JSON-compatible values; the event
//     envelope (type, version) is a closed set
//   - All JSON tags use snake_case
package ir
