package machine

// Phase is the lifecycle phase of a run.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhaseRunning Phase = "RUNNING"
	PhaseError   Phase = "ERROR"
	PhaseDone    Phase = "DONE"
)

// Phases lists every phase in declaration order.
var Phases = []Phase{PhaseIdle, PhaseRunning, PhaseError, PhaseDone}

// Valid reports whether p is a declared phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseRunning, PhaseError, PhaseDone:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether p is terminal. DONE only leaves via RESET.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone
}

// Input is a state machine input.
type Input string

const (
	InputStart    Input = "START"
	InputFail     Input = "FAIL"
	InputComplete Input = "COMPLETE"
	InputReset    Input = "RESET"
)

// Inputs lists every input in declaration order.
var Inputs = []Input{InputStart, InputFail, InputComplete, InputReset}

// next is the complete transition table.
var next = map[Phase]map[Input]Phase{
	PhaseIdle: {
		InputStart: PhaseRunning,
	},
	PhaseRunning: {
		InputFail:     PhaseError,
		InputComplete: PhaseDone,
	},
	PhaseError: {
		InputReset: PhaseIdle,
	},
	PhaseDone: {
		InputReset: PhaseIdle,
	},
}

// Next returns the phase reached by applying in to from, and whether the pair
// is in the transition table. It does not mutate anything.
func Next(from Phase, in Input) (Phase, bool) {
	to, ok := next[from][in]
	return to, ok
}

// Machine holds the current phase of one run.
//
// Thread-safety: Machine is not safe for concurrent use. It is owned by a
// single run, and the run is single-writer.
type Machine struct {
	phase Phase
}

// New creates a machine in the IDLE phase.
func New() *Machine {
	return &Machine{phase: PhaseIdle}
}

// NewAt creates a machine starting in phase p.
// Used by tests to start from an arbitrary phase.
func NewAt(p Phase) *Machine {
	return &Machine{phase: p}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Transition applies in to the current phase.
// Returns a *TransitionError for any pair outside the table; the phase is
// left unchanged in that case.
func (m *Machine) Transition(in Input) error {
	to, ok := Next(m.phase, in)
	if !ok {
		return NewIllegalTransitionError(m.phase, in)
	}
	m.phase = to
	return nil
}
