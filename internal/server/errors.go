package server

import (
	"encoding/json"
	"net/http"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
)

// ErrorBody is the JSON error envelope returned by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Details []string `json:"details,omitempty"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the JSON error envelope with the status its
// kind maps to.
func WriteError(w http.ResponseWriter, err error) {
	de := domain.AsError(err)
	if de.Kind == domain.ErrorKindAuthentication {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, de.HTTPStatusCode(), ErrorBody{Error: ErrorDetail{
		Type:    string(de.Kind),
		Message: de.Message,
		Field:   de.Field,
		Details: de.Details,
	}})
}
