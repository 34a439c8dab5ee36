package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid for the variant
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownVariant is returned when no transition table exists for a variant
	ErrUnknownVariant = errors.New("unknown work order variant")
)
