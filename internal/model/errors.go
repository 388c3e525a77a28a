package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Callers match with
// errors.Is; user-facing messages name the violated invariant.
var (
	// ErrNotFound means a memory id did not resolve.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidQuery means retrieval criteria were malformed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoActiveLabilityWindow means a mutation was attempted outside an
	// open lability window.
	ErrNoActiveLabilityWindow = errors.New("no active lability window")

	// ErrWindowAlreadyOpen means a second window open was attempted on an
	// already-labile memory.
	ErrWindowAlreadyOpen = errors.New("lability window already open")

	// ErrMissingEvidence means a self-schema element cited no memory.
	ErrMissingEvidence = errors.New("missing evidence memory")

	// ErrStorage wraps failures of the persistence collaborator. Never
	// retried internally; the caller decides retry policy.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports a malformed or out-of-range entity field. It is
// raised before any mutation, so the caller can correct input and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
