// Package machine implements the run lifecycle state machine.
//
// A run moves through four phases:
//
//	IDLE --START--> RUNNING --COMPLETE--> DONE
//	                   |                   |
//	                 FAIL                RESET
//	                   v                   |
//	                 ERROR --RESET--> IDLE <+
//
// Transition is strict: any (phase, input) pair outside the table above
// returns a TransitionError with code ILLEGAL_TRANSITION and leaves the phase
// unchanged. There is no silent no-op.
//
// The machine is deliberately unaware of domain events. Mapping events to
// inputs, and the decision to swallow illegal transitions during replay,
// belong to the run store.
package machine
