package scanning

import (
	"errors"
	"fmt"
)

// ErrorKind classifies scanner failures.
type ErrorKind int

const (
	// ErrUnreachable covers transport failures and timeouts talking to the
	// model provider.
	ErrUnreachable ErrorKind = iota
	// ErrInvalidResponse means the model answered but its output could not
	// be decoded into the expected shape.
	ErrInvalidResponse
	// ErrUnreadable means the model reported that it cannot read the bill,
	// or the image could not be decoded at all.
	ErrUnreadable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnreachable:
		return "unreachable"
	case ErrInvalidResponse:
		return "invalid response"
	case ErrUnreadable:
		return "unreadable"
	}
	return "unknown"
}

// ParseError is the typed failure returned by a Scanner.
type ParseError struct {
	Kind ErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scanning bill: %s", e.Kind)
	}
	return fmt.Sprintf("scanning bill: %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err. The second return is false when
// err is not a ParseError.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
