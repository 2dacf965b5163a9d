// Package apperr holds the error kinds shared by the core packages.
//
// Operations wrap one of the sentinels with context, e.g.
//
//	fmt.Errorf("%w: employee %d", apperr.ErrNotFound, id)
//
// and callers classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an absent employee, site, shift, entry, correction or warning.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState reports an operation that is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation reports malformed input such as time strings or GPS coordinates.
	ErrValidation = errors.New("validation error")
	// ErrForbidden is an InvalidState raised when a non-admin attempts an admin-only transition.
	ErrForbidden = fmt.Errorf("%w: admin role required", ErrInvalidState)
)

// NotFound builds a formatted ErrNotFound.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidState builds a formatted ErrInvalidState.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Validation builds a formatted ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidState reports whether err is an ErrInvalidState (including ErrForbidden).
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsValidation reports whether err is an ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
