// Package domain provides the operation record, its wire shapes and the
// canonical error taxonomy for the step service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a service error.
type ErrorKind string

const (
	// ErrorKindAuthentication indicates a bad or missing inbound credential.
	ErrorKindAuthentication ErrorKind = "authentication"

	// ErrorKindValidation indicates malformed or out-of-range input.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindExecution indicates a domain-logic failure inside a processor.
	ErrorKindExecution ErrorKind = "execution"

	// ErrorKindTimeout indicates execution exceeded its bound.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindDelivery indicates the webhook target was unreachable or
	// rejected every attempt.
	ErrorKindDelivery ErrorKind = "delivery"

	// ErrorKindAlert indicates the notification channel was unreachable.
	ErrorKindAlert ErrorKind = "alert"

	// ErrorKindUnavailable indicates the service is shutting down.
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindInternal indicates an unhandled fault.
	ErrorKindInternal ErrorKind = "internal"
)

// Error is the canonical error carried through the pipeline and rendered to
// callers and webhook receivers.
type Error struct {
	// Kind is the category of error
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Field is the input field that caused the error (if applicable)
	Field string `json:"field,omitempty"`

	// Details carries per-field validation messages
	Details []string `json:"details,omitempty"`

	// StatusCode overrides the derived HTTP status code
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case ErrorKindAuthentication:
		return http.StatusUnauthorized
	case ErrorKindValidation:
		return http.StatusUnprocessableEntity
	case ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case ErrorKindDelivery, ErrorKindAlert:
		return http.StatusBadGateway
	case ErrorKindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// WithField records the input field that caused the error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetails appends per-field messages.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error for errors.Is / errors.As.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Convenience constructors

func ErrAuthentication(message string) *Error {
	return NewError(ErrorKindAuthentication, message)
}

func ErrValidation(message string) *Error {
	return NewError(ErrorKindValidation, message)
}

func ErrExecution(message string) *Error {
	return NewError(ErrorKindExecution, message)
}

func ErrTimeout(message string) *Error {
	return NewError(ErrorKindTimeout, message)
}

func ErrInternal(message string) *Error {
	return NewError(ErrorKindInternal, message)
}

func ErrUnavailable(message string) *Error {
	return NewError(ErrorKindUnavailable, message)
}

// AsError normalizes any error into a *Error. Deadline expiry maps to a
// timeout; anything else unknown maps to an execution error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout("execution exceeded its time limit").WithCause(err)
	}
	return ErrExecution(err.Error()).WithCause(err)
}

// KindOf returns the error kind of err, or "" for nil.
func KindOf(err error) ErrorKind {
	if e := AsError(err); e != nil {
		return e.Kind
	}
	return ""
}
