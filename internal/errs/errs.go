// Package errs defines the error taxonomy shared by the fulfillment engines.
// Kinds map to HTTP statuses at the API boundary; everything else propagates
// with %w wrapping.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	BusinessRule
	Upstream
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case BusinessRule:
		return "BUSINESS_RULE"
	case Upstream:
		return "UPSTREAM_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a kinded error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain; unkinded errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-facing message for an error. Internal errors
// are not leaked verbatim.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "An unexpected error occurred"
}
