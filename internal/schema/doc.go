// Package schema checks run log records against a CUE definition of the
// record envelope.
//
// The linter reports the status of every line in a log without modifying
// it. It applies the same acceptance rules as run.Open, so a line that lints
// as ok is exactly a line that replay applies.
package schema
