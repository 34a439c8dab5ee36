package service

import "errors"

var (
	// ErrValidation is returned when a request misses required input.
	// Nothing is written when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrInconsistentState is returned when stored data violates an engine invariant.
	// It is logged and surfaced, never corrected automatically.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")
)
