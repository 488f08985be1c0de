package handlers

import (
	"net/http"

	"github.com/alexedwards/flow"

	"github.com/nomis52/vetflow/server/runner"
	"github.com/nomis52/vetflow/ui"
)

// SessionStatusResponse is a session's current run plus anything the user
// has to look at.
type SessionStatusResponse struct {
	Run     *runner.RunStatus `json:"run,omitempty"`
	Dialogs []ui.Dialog       `json:"dialogs"`
	Errors  []ui.ErrorEntry   `json:"errors"`
}

// RunStatusHandler handles requests for a session's run status.
type RunStatusHandler struct {
	sessions SessionProvider
	runner   WorkflowRunner
}

// NewRunStatusHandler creates a new RunStatusHandler.
func NewRunStatusHandler(sessions SessionProvider, r WorkflowRunner) *RunStatusHandler {
	return &RunStatusHandler{
		sessions: sessions,
		runner:   r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(flow.Param(r.Context(), "session"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := SessionStatusResponse{
		Dialogs: sess.UI.Pending(),
		Errors:  sess.UI.Errors(),
	}
	if st, ok := h.runner.Status(sess.ID); ok {
		resp.Run = &st
	}
	writeJSON(w, http.StatusOK, resp)
}
