package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the sentinel behind every ValidationError.
	ErrValidation = errors.New("action rejected")
	// ErrInvalidTransition rejects a phase change outside the allowed edges.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrNotFound reports an unknown combatant, effect, skill or item id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEffect flags a malformed effect spec.
	ErrInvalidEffect = errors.New("invalid effect spec")
	// ErrInvariant is the sentinel behind every InvariantError.
	ErrInvariant = errors.New("engine invariant violated")
)

// ValidationError is a recoverable refusal: nothing was mutated.
type ValidationError struct {
	Reason string
}

// Reject builds a ValidationError from a formatted reason.
func Reject(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Reason }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFound wraps ErrNotFound with the kind and id that were missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// InvariantError reports corrupted engine state. It is a programming error.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string { return "engine invariant violated: " + e.Detail }
func (e *InvariantError) Unwrap() error { return ErrInvariant }
