package machine

import (
	"errors"
	"fmt"
)

// TransitionErrorCode categorizes state machine errors.
type TransitionErrorCode string

const (
	// ErrCodeIllegalTransition indicates an input that the current phase
	// does not accept.
	ErrCodeIllegalTransition TransitionErrorCode = "ILLEGAL_TRANSITION"
)

// TransitionError is returned by Machine.Transition.
// It carries the phase and input for diagnostics.
type TransitionError struct {
	Code  TransitionErrorCode
	Phase Phase
	Input Input
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: cannot process event '%s' while in phase '%s'", e.Input, e.Phase)
}

// NewIllegalTransitionError creates a TransitionError for a rejected input.
func NewIllegalTransitionError(phase Phase, in Input) *TransitionError {
	return &TransitionError{
		Code:  ErrCodeIllegalTransition,
		Phase: phase,
		Input: in,
	}
}

// IsIllegalTransition returns true if err is an illegal transition error.
// Uses errors.As to handle wrapped errors.
func IsIllegalTransition(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == ErrCodeIllegalTransition
	}
	return false
}
