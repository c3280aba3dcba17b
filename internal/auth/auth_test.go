package auth

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		presented  string
		configured string
		want       Decision
	}{
		{name: "matching token", presented: "secret-123", configured: "secret-123", want: Allowed},
		{name: "wrong token", presented: "secret-124", configured: "secret-123", want: Denied},
		{name: "prefix of token", presented: "secret", configured: "secret-123", want: Denied},
		{name: "empty presented", presented: "", configured: "secret-123", want: Denied},
		{name: "empty configured", presented: "", configured: "", want: Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authenticate(tt.presented, tt.configured); got != tt.want {
				t.Errorf("Authenticate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid bearer token", header: "Bearer test-key-123", want: "test-key-123"},
		{name: "bearer lowercase", header: "bearer test-key-456", want: "test-key-456"},
		{name: "missing bearer prefix", header: "test-key-789", wantErr: ErrMalformedCredential},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrMalformedCredential},
		{name: "empty token", header: "Bearer ", wantErr: ErrMalformedCredential},
		{name: "empty header", header: "", wantErr: ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearer(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ExtractBearer() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractBearer() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractBearer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGate_Check(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gate := NewGate("super-secret-token", []string{"/health"}, logger)

	tests := []struct {
		name    string
		path    string
		header  string
		wantErr error
	}{
		{name: "public path without header", path: "/health"},
		{name: "valid token", path: "/example/process-text", header: "Bearer super-secret-token"},
		{name: "missing header", path: "/example/process-text", wantErr: ErrMissingCredential},
		{name: "malformed header", path: "/example/process-text", header: "Token super-secret-token", wantErr: ErrMalformedCredential},
		{name: "wrong token", path: "/example/process-text", header: "Bearer nope", wantErr: ErrInvalidCredential},
		{name: "public path is exact match", path: "/health/deep", wantErr: ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			err := gate.Check(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if strings.Contains(buf.String(), "super-secret-token") || strings.Contains(buf.String(), "nope") {
		t.Errorf("token material leaked into logs: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "auth denied") {
		t.Error("expected denied outcomes to be logged")
	}
}
