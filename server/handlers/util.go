package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/server/runner"
	"github.com/nomis52/vetflow/session"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/ui"
	"github.com/nomis52/vetflow/workflows"
)

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError maps err onto an HTTP status and writes it as an ErrorResponse.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, workflows.ErrUnknownWorkflow),
		errors.Is(err, runner.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, ui.ErrUnknownDialog):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, ui.ErrActionNotAllowed),
		errors.Is(err, ui.ErrUnknownCandidate),
		errors.Is(err, appcontext.ErrKindMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
