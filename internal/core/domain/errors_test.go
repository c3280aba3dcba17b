package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "kind and message",
			err:      &Error{Kind: ErrorKindValidation, Message: "bad input"},
			expected: "validation: bad input",
		},
		{
			name:     "kind, field and message",
			err:      &Error{Kind: ErrorKindValidation, Field: "text", Message: "text is required"},
			expected: "validation (text): text is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected int
	}{
		{"authentication", &Error{Kind: ErrorKindAuthentication}, http.StatusUnauthorized},
		{"validation", &Error{Kind: ErrorKindValidation}, http.StatusUnprocessableEntity},
		{"timeout", &Error{Kind: ErrorKindTimeout}, http.StatusGatewayTimeout},
		{"delivery", &Error{Kind: ErrorKindDelivery}, http.StatusBadGateway},
		{"unavailable", &Error{Kind: ErrorKindUnavailable}, http.StatusServiceUnavailable},
		{"execution", &Error{Kind: ErrorKindExecution}, http.StatusInternalServerError},
		{"unknown", &Error{Kind: ErrorKind("unknown")}, http.StatusInternalServerError},
		{"explicit status code", &Error{Kind: ErrorKindValidation, StatusCode: http.StatusBadRequest}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestError_Chaining(t *testing.T) {
	cause := errors.New("boom")
	err := ErrValidation("invalid").
		WithField("max_length").
		WithDetails("max_length: must be positive").
		WithStatusCode(http.StatusBadRequest).
		WithCause(cause)

	if err.Field != "max_length" {
		t.Errorf("Field = %q, want %q", err.Field, "max_length")
	}
	if len(err.Details) != 1 {
		t.Errorf("Details = %v, want one entry", err.Details)
	}
	if err.HTTPStatusCode() != http.StatusBadRequest {
		t.Errorf("HTTPStatusCode() = %d", err.HTTPStatusCode())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find cause")
	}
}

func TestAsError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if AsError(nil) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		inner := ErrValidation("text is required")
		got := AsError(fmt.Errorf("process: %w", inner))
		if got != inner {
			t.Errorf("AsError() = %v, want the wrapped *Error", got)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		got := AsError(fmt.Errorf("run: %w", context.DeadlineExceeded))
		if got.Kind != ErrorKindTimeout {
			t.Errorf("Kind = %v, want %v", got.Kind, ErrorKindTimeout)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		got := AsError(errors.New("disk full"))
		if got.Kind != ErrorKindExecution || got.Message != "disk full" {
			t.Errorf("AsError() = %+v", got)
		}
	})
}
