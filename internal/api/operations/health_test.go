package operations

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{500 * time.Millisecond, "0s"},
		{4 * time.Second, "4s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{48*time.Hour + 5*time.Second, "2d 5s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatUptime(tt.in); got != tt.want {
				t.Errorf("FormatUptime(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHealth_Public(t *testing.T) {
	h := newRouter(&mockAcceptor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "healthy" || body.ServiceName != "test-service" || body.Version != "1.2.3" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Uptime != "1m 30s" {
		t.Errorf("uptime = %q, want 1m 30s", body.Uptime)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", body.Timestamp, err)
	}
}

func TestHealth_Clock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealth("svc", "v", start)
	h.now = func() time.Time { return start.Add(26*time.Hour + 3*time.Minute + 4*time.Second) }

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Uptime != "1d 2h 3m 4s" {
		t.Errorf("uptime = %q", body.Uptime)
	}
	if body.Timestamp != "2024-01-02T02:03:04Z" {
		t.Errorf("timestamp = %q", body.Timestamp)
	}
}
