package propagation

import "errors"

var (
	// ErrPropagationFailure means the element set has no valid state at the requested
	// epoch: decayed, hyperbolic, non-finite output or outside the engine's domain.
	ErrPropagationFailure = errors.New("propagation failure")

	// ErrResourceBinding means a handle could not be acquired, looked up or released.
	// It indicates misuse of the binding lifecycle rather than a bad orbit.
	ErrResourceBinding = errors.New("resource binding failure")

	// ErrInvalidElementType means no engine can bind the element type.
	ErrInvalidElementType = errors.New("invalid element type")
)
