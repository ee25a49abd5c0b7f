// Package query describes searches over the exported event index and
// compiles them to parameterized SQLite.
//
// A search is a Select with an optional Filter built from sealed predicate
// types:
//
//	Select{
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: FieldRunID, Value: "run-1"},
//	    Equals{Field: FieldType, Value: "USER_ACTION"},
//	    PayloadEquals{Path: "action", Value: "click"},
//	  }},
//	  Limit: 10,
//	}
//
// compiles to
//
//	SELECT run_id, id, seq, type, version, payload FROM events
//	WHERE run_id = ? AND type = ? AND json_type(payload, ?) = 'text' AND json_extract(payload, ?) = ?
//	ORDER BY run_id COLLATE BINARY ASC, seq ASC, id COLLATE BINARY ASC LIMIT ?
//
// Rules:
//   - Every value is bound as a parameter; only column names from the fixed
//     Field set are written into the SQL text.
//   - Payload paths are dot-separated identifiers ("order.status").
//   - Payload comparisons are typed: the string "1", the number 1 and the
//     boolean true never match each other.
//   - Objects and arrays cannot be compared.
//   - Every query has a total ORDER BY, so results are deterministic.
package query
