package operations

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/server"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status      string `json:"status"`
	ServiceName string `json:"service_name"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

// Health reports liveness. It is on the auth gate's public list.
type Health struct {
	serviceName string
	version     string
	startedAt   time.Time
	now         func() time.Time
}

func NewHealth(serviceName, version string, startedAt time.Time) *Health {
	return &Health{
		serviceName: serviceName,
		version:     version,
		startedAt:   startedAt,
		now:         time.Now,
	}
}

func (h *Health) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.ServeHTTP)
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	server.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		ServiceName: h.serviceName,
		Version:     h.version,
		Uptime:      FormatUptime(now.Sub(h.startedAt)),
		Timestamp:   now.UTC().Format(time.RFC3339),
	})
}

// FormatUptime renders d as "1d 2h 3m 4s", omitting zero units.
func FormatUptime(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	total := int64(d / time.Second)
	units := []struct {
		suffix string
		size   int64
	}{
		{"d", 86400},
		{"h", 3600},
		{"m", 60},
		{"s", 1},
	}

	var parts []string
	for _, u := range units {
		if n := total / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			total -= n * u.size
		}
	}
	return strings.Join(parts, " ")
}
