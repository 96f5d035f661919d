// internal/app/system/apperr/apperr.go
//
// Package apperr defines the typed failures services return to handlers.
// Each Error carries a Kind that maps to exactly one HTTP status; the
// mapping lives here and nowhere else.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindPrecondition
	KindTooManyRequests
)

// String returns a stable name for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition_failed"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
// Conflicts surface as 400 to match the existing API contract.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed application failure.
//
// Message is safe to show to API callers. Fields holds per-field validation
// messages. Err is the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Message so that package-level
// sentinels can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Status is shorthand for e.Kind.Status().
func (e *Error) Status() int { return e.Kind.Status() }

// New returns an Error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an Error that records err as its cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation returns a 400 carrying per-field messages.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NotFound returns a 404 with msg.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Forbidden returns a 403 with msg.
func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

// Conflict returns a 400-class conflict with msg.
func Conflict(msg string) *Error { return New(KindConflict, msg) }

// Unauthorized returns a 401 with msg.
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

// Precondition returns a 500 for operator errors such as unseeded data.
func Precondition(msg string) *Error { return New(KindPrecondition, msg) }

// Internal wraps an unexpected failure. The message shown to callers is
// always the generic one; err is kept for logs.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal Server Error", Err: err}
}

// As extracts an *Error from err. Errors that are not application errors
// are reported as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	return As(err).Kind
}
