package bill

import (
	"errors"
	"fmt"
	"net/mail"
)

// ErrNotFound is returned when a bill does not exist for the given owner.
var ErrNotFound = errors.New("bill not found")

// PersistenceErrorKind classifies repository failures.
type PersistenceErrorKind int

const (
	// Conflict means an id collision on create. Ids are generated, so this
	// indicates an invariant violation and is never retried.
	Conflict PersistenceErrorKind = iota
	// Unavailable covers every other storage failure; callers may retry.
	Unavailable
)

func (k PersistenceErrorKind) String() string {
	if k == Conflict {
		return "conflict"
	}
	return "unavailable"
}

// PersistenceError is the typed failure returned by the repository.
type PersistenceError struct {
	Kind PersistenceErrorKind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("bill storage: %s: %v", e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a Conflict persistence error.
func IsConflict(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Kind == Conflict
}

// ValidationErrorKind classifies user-input validation failures.
type ValidationErrorKind int

const (
	BadDateRange ValidationErrorKind = iota
	BadEmailAddress
)

// ValidationError carries a short, user-presentable message.
type ValidationError struct {
	Kind ValidationErrorKind
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateEmail checks the syntax of a recipient address.
func ValidateEmail(address string) error {
	if _, err := mail.ParseAddress(address); err != nil {
		return &ValidationError{
			Kind: BadEmailAddress,
			Msg:  fmt.Sprintf("%q does not look like a valid email address", address),
		}
	}
	return nil
}
