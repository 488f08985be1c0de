package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alexedwards/flow"

	"github.com/nomis52/vetflow/archetype"
)

// RunRequest defines the request body for starting a workflow.
type RunRequest struct {
	// Objects are references, as "kind:id", of objects the workflow starts
	// from, such as the appointment being checked in.
	Objects []string `json:"objects"`
}

// RunHandler starts a workflow in a session.
type RunHandler struct {
	logger   *slog.Logger
	sessions SessionProvider
	objects  ObjectResolver
	runner   WorkflowRunner
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(logger *slog.Logger, sessions SessionProvider, objects ObjectResolver, r WorkflowRunner) *RunHandler {
	return &RunHandler{
		logger:   logger,
		sessions: sessions,
		objects:  objects,
		runner:   r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(flow.Param(r.Context(), "session"))
	if err != nil {
		writeError(w, err)
		return
	}

	// An empty body starts the workflow from the session context alone.
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid JSON: %v", err),
		})
		return
	}

	seen := make(map[string]bool, len(req.Objects))
	objects := make([]archetype.Object, 0, len(req.Objects))
	for _, s := range req.Objects {
		if seen[s] {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("duplicate object %q in request", s),
			})
			return
		}
		seen[s] = true

		ref, err := archetype.ParseReference(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		obj, err := h.objects.Get(r.Context(), ref)
		if err != nil {
			writeError(w, err)
			return
		}
		objects = append(objects, obj)
	}

	summary, err := h.runner.Run(sess, flow.Param(r.Context(), "name"), objects...)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// The workflow could not be built from the request.
			status = http.StatusBadRequest
		}
		h.logger.Info("failed to start workflow", "session", sess.ID, "error", err)
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, summary)
}
