// Package evaluator checks agent output against a list of requirements and
// keeps a requirement ledger across evaluations.
//
// Every requirement gets one ledger entry per evaluation:
//
//   - done: the output names the requirement id or quotes its description
//   - partial: the output mentions at least one description keyword
//   - todo: nothing in the output refers to the requirement
//   - blocked: the requirement was already done in an earlier ledger and is
//     being asked for again without new evidence
//
// Partial and todo entries form the outstanding set. When it is non-empty the
// evaluator writes a delta ticket whose id is derived from the outstanding
// entries with ir.ContentHash, so the same outstanding set always yields the
// same ticket. Done entries never appear in a ticket. Blocked entries are
// reported for operator input instead of being asked again.
//
// Ledger and ticket files are canonical JSON. Both paths are checked against
// the configured write policy before anything is written.
package evaluator
