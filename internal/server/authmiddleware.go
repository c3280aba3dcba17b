package server

import (
	"net/http"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/auth"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
)

// AuthMiddleware rejects requests that fail the gate with a JSON 401
// before any body is read. Public paths pass through.
// If the gate is nil, the middleware is a no-op.
func AuthMiddleware(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if gate == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Check(r); err != nil {
				AddError(r.Context(), err)
				WriteError(w, domain.ErrAuthentication("invalid or missing bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
