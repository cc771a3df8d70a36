package model

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("transport error")
)

// ValidationError names the offending field. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransport reports whether err is, or wraps, ErrTransport.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

type transportError struct {
	op    string
	cause error
}

func (e *transportError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.cause) }
func (e *transportError) Unwrap() error { return e.cause }
func (e *transportError) Is(target error) bool {
	return target == ErrTransport
}

// Transport classifies err as a backend failure of op and attaches a stack.
// A nil err yields nil; already classified errors pass through unchanged.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransport(err) || IsNotFound(err) || IsValidationError(err) {
		return err
	}
	return pkgerrors.WithStack(&transportError{op: op, cause: err})
}

// NotFound wraps ErrNotFound with the missing resource and id.
func NotFound(resource, id string) error {
	return fmt.Errorf("%s %q: %w", resource, id, ErrNotFound)
}
