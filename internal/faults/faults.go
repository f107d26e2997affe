// Package faults defines the error taxonomy shared by the lifecycle
// manager, the ledgers and the lab registry. Handlers map these to
// HTTP responses; the core never maps them itself.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an entity lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an invariant violation, like a duplicate active
	// session or a busy lab.
	ErrConflict = errors.New("conflict")
	// ErrForbidden marks a role or ownership check failure.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput marks a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func Forbidden(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}
