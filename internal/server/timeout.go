package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the synchronous request path. A handler that
// overruns gets a 503 with the JSON error envelope. Background operations
// are not affected; they run on their own context.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(ErrorBody{Error: ErrorDetail{
		Type:    "unavailable",
		Message: "request timed out",
	}})
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
