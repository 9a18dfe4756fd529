// Package apperror defines the classified errors every layer of the store
// returns. Callers branch on the sentinel with errors.Is and read the
// human-readable Message (and Field, for validation problems) off *AppError.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("ValidationError")
	ErrCast         = errors.New("CastError")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("persistence unavailable")
)

type AppError struct {
	Err     error  // sentinel classifying the failure
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error from a lower layer
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// either one.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Cast reports a value that is not a well-formed identifier. label names the
// kind of document the identifier should point at ("owner", "video").
func Cast(field, label, value string) *AppError {
	return &AppError{
		Err:     ErrCast,
		Message: fmt.Sprintf("invalid %s ID %q", label, value),
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable wraps a failure of the backing engine. op describes what was
// being attempted, e.g. "inserting tweets".
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s: persistence unavailable", op),
		Cause:   cause,
	}
}

// Classify passes AppErrors through untouched and wraps anything else as
// Unavailable, so nothing opaque leaves the store.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Unavailable(op, err)
}
