package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
)

// RecoverMiddleware turns a handler panic into a JSON 500 and an operator
// alert. A nil notifier only logs.
func RecoverMiddleware(logger *slog.Logger, notifier ports.Notifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := domain.ErrInternal(fmt.Sprintf("panic: %v", rec))
				logger.Error("handler panicked",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				AddError(r.Context(), err)
				if notifier != nil {
					notifier.NotifyError(r.Context(), err, ports.AlertContext{Endpoint: r.URL.Path})
				}
				WriteError(w, domain.ErrInternal("internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
