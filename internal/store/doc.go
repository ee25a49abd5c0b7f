// Package store provides a SQLite export index for run logs.
//
// The JSONL log of each run is the source of truth. The store is a derived,
// rebuildable query surface: exporting the same run twice is a no-op, and a
// deleted database can be regenerated from the logs at any time.
//
// # Tables
//
//   - runs: one row per exported run with its phase and event count
//   - events: one row per distinct event identity, keyed by (run_id, id)
//
// # Patterns
//
// Idempotent writes
//   - PRIMARY KEY (run_id, id) with ON CONFLICT DO NOTHING
//   - Re-exporting a run only inserts events appended since the last export
//
// Deterministic reads
//   - Event queries order by seq ASC, id ASC COLLATE BINARY
//   - seq is the event's position in the run's application order
//
// Canonical payloads
//   - payload holds ir.MarshalCanonical output, so equal payloads are equal
//     strings and can be compared in SQL
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
