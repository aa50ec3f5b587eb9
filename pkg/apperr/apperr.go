// Package apperr defines the error kinds surfaced by the donation and
// scheduling services. Handlers map each kind to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindCapacityExceeded
	KindForbidden
	KindAlreadyAssigned
	KindUnverifiedCode
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindForbidden:
		return "forbidden"
	case KindAlreadyAssigned:
		return "already_assigned"
	case KindUnverifiedCode:
		return "unverified_code"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrAlreadyAssigned  = &Error{Kind: KindAlreadyAssigned}
	ErrUnverifiedCode   = &Error{Kind: KindUnverifiedCode}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
)

// Error is a classified, user-presentable error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func CapacityExceeded(format string, args ...any) *Error {
	return newf(KindCapacityExceeded, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func AlreadyAssigned(format string, args ...any) *Error {
	return newf(KindAlreadyAssigned, format, args...)
}

func UnverifiedCode(format string, args ...any) *Error {
	return newf(KindUnverifiedCode, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message for a classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.String()
	}
	return "internal server error"
}
