package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serviceError maps a core error to its HTTP status and error code.
// Unrecognized errors are logged and become opaque 500s so internal
// details never reach the client.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *core.ValidationError
		notFoundErr   *core.NotFoundError
		conflictErr   *core.ConflictError
		inventoryErr  *core.InsufficientInventoryError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, r, validationErr.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
	case errors.As(err, &notFoundErr):
		writeError(w, r, notFoundErr.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrNoActiveCycle):
		writeError(w, r, "no active cycle", "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &inventoryErr):
		writeError(w, r, inventoryErr.Error(), "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.As(err, &conflictErr):
		writeError(w, r, conflictErr.Error(), "CONFLICT", http.StatusConflict)
	default:
		h.logger.Error("unhandled service error",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
