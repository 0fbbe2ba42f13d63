// Package apperr defines the error classes shared by the ledger, the
// services and the HTTP handlers.  Every class is a caller-fixable input
// problem; none of them is retried.  Errors are wrapped with fmt.Errorf and
// %w so that handlers can classify them with errors.Is while keeping the
// human readable detail.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input.  Handlers answer 400.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown table, order or dish.  Handlers answer 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation such as a duplicate table
	// number or a duplicate dish within a category.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState marks an operation that the entity's current state
	// does not allow, e.g. adding items to a completed order.
	ErrInvalidState = errors.New("invalid state")
)

// Validation returns an ErrValidation carrying a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound carrying a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict returns an ErrConflict carrying a formatted message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// InvalidState returns an ErrInvalidState carrying a formatted message.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Message strips the class prefix and returns the detail for display.
func Message(err error) string {
	for _, class := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInvalidState} {
		prefix := class.Error() + ": "
		if s := err.Error(); errors.Is(err, class) && len(s) > len(prefix) && s[:len(prefix)] == prefix {
			return s[len(prefix):]
		}
	}
	return err.Error()
}
