package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindFileConstraint    Kind = "file_constraint_violation"
	KindEmptySubmission   Kind = "empty_submission"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrFileConstraint    = &Error{Kind: KindFileConstraint}
	ErrEmptySubmission   = &Error{Kind: KindEmptySubmission}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
)

// Error is a typed workflow failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for errors built with details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns a ValidationError for op.
func Validation(op, format string, args ...any) error {
	return newError(KindValidation, op, format, args...)
}

// Denied returns a PermissionDenied error for op.
func Denied(op, format string, args ...any) error {
	return newError(KindPermissionDenied, op, format, args...)
}

// InvalidTransition returns an InvalidTransition error for op.
func InvalidTransition(op, format string, args ...any) error {
	return newError(KindInvalidTransition, op, format, args...)
}

// FileConstraint returns a FileConstraintViolation for op.
func FileConstraint(op, format string, args ...any) error {
	return newError(KindFileConstraint, op, format, args...)
}

// EmptySubmission returns an EmptySubmission error for op.
func EmptySubmission(op string) error {
	return newError(KindEmptySubmission, op, "no content in any enabled channel")
}

// NotFound returns a NotFound error for op.
func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

// Conflict wraps the last stale-write error after retries are exhausted.
func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Msg: "concurrent update, retries exhausted", Err: err}
}

// KindOf returns the kind of err, or "" when err is not a workflow error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
