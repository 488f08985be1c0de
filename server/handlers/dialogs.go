package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexedwards/flow"

	"github.com/nomis52/vetflow/ui"
)

// DialogsHandler lists a session's pending dialogs, oldest first.
type DialogsHandler struct {
	sessions SessionProvider
}

// NewDialogsHandler creates a new DialogsHandler.
func NewDialogsHandler(sessions SessionProvider) *DialogsHandler {
	return &DialogsHandler{sessions: sessions}
}

// ServeHTTP implements http.Handler.
func (h *DialogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(flow.Param(r.Context(), "session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.UI.Pending())
}

// RespondHandler answers a pending dialog. The task waiting on the dialog
// runs before the response is written, so a following status request sees
// its effects.
type RespondHandler struct {
	logger   *slog.Logger
	sessions SessionProvider
}

// NewRespondHandler creates a new RespondHandler.
func NewRespondHandler(logger *slog.Logger, sessions SessionProvider) *RespondHandler {
	return &RespondHandler{
		logger:   logger,
		sessions: sessions,
	}
}

// ServeHTTP implements http.Handler.
func (h *RespondHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(flow.Param(r.Context(), "session"))
	if err != nil {
		writeError(w, err)
		return
	}

	var resp ui.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid JSON: %v", err),
		})
		return
	}
	if resp.Action == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "action is required"})
		return
	}

	id := flow.Param(r.Context(), "dialog")
	if err := sess.UI.Respond(id, resp); err != nil {
		h.logger.Debug("dialog response rejected", "session", sess.ID, "dialog_id", id, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.UI.Pending())
}
