// Package operations exposes the step acceptance and health endpoints.
package operations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/pipeline"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/server"
)

// DefaultMaxBodyBytes caps the acceptance request body.
const DefaultMaxBodyBytes = 1 << 20

// Acceptor starts an operation for a step call.
type Acceptor interface {
	Accept(ctx context.Context, call *domain.StepCall) (uuid.UUID, error)
}

// AcceptedResponse is the 202 body.
type AcceptedResponse struct {
	OperationID uuid.UUID `json:"operation_id"`
	Status      string    `json:"status"`
}

type Handler struct {
	acceptor     Acceptor
	logger       *slog.Logger
	maxBodyBytes int64
}

func NewHandler(acceptor Acceptor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{acceptor: acceptor, logger: logger, maxBodyBytes: DefaultMaxBodyBytes}
}

// RegisterRoutes mounts the step endpoints. Both accept any method.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/example/process-text", h.HandleStep)
	r.HandleFunc("/v1/steps", h.HandleStep)
}

// HandleStep decodes a step call and hands it to the acceptor. It answers
// 202 with X-Operation-ID once the operation is recorded; processing and
// delivery happen afterwards.
func (h *Handler) HandleStep(w http.ResponseWriter, r *http.Request) {
	ctx := pipeline.WithEndpoint(r.Context(), r.URL.Path)

	call, err := h.decode(w, r)
	if err != nil {
		server.AddError(ctx, err)
		server.WriteError(w, err)
		return
	}

	id, err := h.acceptor.Accept(ctx, call)
	if err != nil {
		server.AddError(ctx, err)
		if errors.Is(err, pipeline.ErrShuttingDown) {
			w.Header().Set("Retry-After", "5")
		}
		server.WriteError(w, err)
		return
	}

	server.AddLogField(ctx, "operation_id", id.String())
	server.AddLogField(ctx, "step_id", call.Step.ID)

	w.Header().Set("X-Operation-ID", id.String())
	server.WriteJSON(w, http.StatusAccepted, AcceptedResponse{
		OperationID: id,
		Status:      string(domain.StateAccepted),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*domain.StepCall, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, domain.ErrValidation("request body is required")
	}

	var call domain.StepCall
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(&call); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, domain.ErrValidation("request body too large").WithStatusCode(http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return nil, domain.ErrValidation("request body is required")
		default:
			return nil, domain.ErrValidation("request body must be a JSON object").WithDetails(err.Error()).WithCause(err)
		}
	}
	return &call, nil
}
