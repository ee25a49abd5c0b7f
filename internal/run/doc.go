// Package run provides the durable, replayable state of a single workflow run.
//
// Each run owns one append-only log file, <dir>/<run-id>.jsonl, holding one
// raw JSON event record per line. Opening a run hydrates it: the log is read
// once, every well-formed record is replayed in order, and the in-memory
// index of event identities, the application order and the lifecycle phase
// are rebuilt from it.
//
// # Guarantees
//
// Idempotent dispatch: an event whose identity (ir.EventID) is already known
// is reported as a duplicate and causes no write and no state change.
//
// Crash tolerance: a line that does not decode as a complete record (most
// commonly a fragment torn by a crash mid-append) is skipped during hydrate.
// Open never fails because of log content, only because of I/O errors.
// Durability covers newline-terminated records only.
//
// Write-then-apply: a dispatched event is recorded in memory only after its
// append returned successfully. Re-opening the run is the recovery path for
// anything left ambiguous by a crash during the write itself.
//
// # Replay policy
//
// Events are mapped onto state machine inputs by phase. Combinations with no
// mapping are not forwarded, and any illegal transition the machine reports
// while applying the mapping is swallowed. Replay therefore cannot fail on a
// historical event order that no longer fits the mapping. Direct callers of
// machine.Machine.Transition still get the strict error.
//
// # Concurrency
//
// A Run is single-writer and not safe for concurrent use. Callers that need
// concurrent access must serialize Dispatch per run id. Two processes must not
// own the same run at once.
package run
