// Package harness runs conformance scenarios against run logs.
//
// A scenario seeds an optional log, dispatches a sequence of events (with
// optional reopen steps that hydrate the run again from disk), and then
// checks the resulting trace, phase and exported state.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: torn_tail_recovery
//	description: "A torn final record is discarded and the run continues"
//	run_id: run-1
//	log: |-
//	  {"type":"SYS_START","version":"1.0","payload":{}}
//	  {"type":"USER_ACT
//	flow:
//	  - reopen: true
//	  - dispatch: SYS_STOP
//	    payload: {}
//	    expect:
//	      new: true
//	      phase: DONE
//	assertions:
//	  - type: final_phase
//	    phase: DONE
//	  - type: replay_stats
//	    expect: { discarded: 1 }
//	  - type: final_state
//	    table: runs
//	    where: { run_id: run-1 }
//	    expect: { event_count: 2 }
//
// # Assertion Types
//
//   - trace_contains: an appended dispatch of the event type with matching payload
//   - trace_order: event types first appended in the given order
//   - trace_count: exactly N appended dispatches of the event type
//   - final_phase: the run's phase after the flow
//   - replay_stats: statistics from the most recent hydration
//   - final_state: a row of the exported SQLite index (tables runs, events)
//
// # Deterministic Testing
//
// Event identities are content hashes and runs are replayed from files, so a
// scenario produces the same trace on every execution. Each scenario runs in
// its own temporary directory and in-memory SQLite database. Traces are
// compared against golden files in canonical JSON.
package harness
