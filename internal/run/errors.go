package run

import (
	"errors"
	"fmt"
)

// ErrInvalidRunID is returned by Open for a run id that cannot name a log
// file inside the persistence directory.
var ErrInvalidRunID = errors.New("invalid run id")

// PersistenceErrorCode categorizes durable storage failures.
type PersistenceErrorCode string

const (
	// ErrCodePersistenceFailure indicates the log directory could not be
	// created or the log could not be read or appended.
	ErrCodePersistenceFailure PersistenceErrorCode = "PERSISTENCE_FAILURE"
)

// PersistenceError reports a genuine durability failure. It is fatal for the
// triggering call and is never absorbed.
type PersistenceError struct {
	Code PersistenceErrorCode
	Op   string // "mkdir", "open", "append", "sync", "close", "read"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func newPersistenceError(op, path string, err error) *PersistenceError {
	return &PersistenceError{
		Code: ErrCodePersistenceFailure,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// IsPersistenceFailure returns true if err is a persistence failure.
// Uses errors.As to handle wrapped errors.
func IsPersistenceFailure(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodePersistenceFailure
	}
	return false
}
