// Package apperror defines the closed set of error kinds surfaced by the
// moderation engine. Domain packages declare their own sentinel errors with
// New so callers can match either the exact sentinel or its kind.
package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Kinds
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrPolicy     = errors.New("policy error")
	ErrPermission = errors.New("permission denied")
)

// Error is a domain error tagged with one of the kinds above.
type Error struct {
	kind   error
	msg    string
	Fields map[string]string
}

// New creates a new error of the given kind
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Validation creates a validation error carrying per-field messages
func Validation(fields map[string]string) *Error {
	return &Error{kind: ErrValidation, msg: "validation failed", Fields: fields}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the kind of err, or nil when err is not a domain error.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrPolicy, ErrPermission} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Wrapf attaches context to a domain error while keeping it matchable.
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

// FieldErrors returns validation field messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// RetryOnConflict runs fn and, if it fails with a conflict, runs it exactly
// once more. fn must re-read any state it depends on.
func RetryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !errors.Is(err, ErrConflict) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}
