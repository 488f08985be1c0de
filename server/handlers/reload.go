package handlers

import (
	"log/slog"
	"net/http"
)

// ReloadHandler re-reads something from disk: the configuration, or the run
// history.
type ReloadHandler struct {
	logger   *slog.Logger
	what     string
	reloader Reloader
}

// NewReloadHandler creates a new ReloadHandler. what names the reloaded
// resource in logs and errors.
func NewReloadHandler(logger *slog.Logger, what string, reloader Reloader) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger.With("reload", what),
		what:     what,
		reloader: reloader,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading " + h.what)

	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("failed to reload "+h.what, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "failed to reload " + h.what + ": " + err.Error(),
		})
		return
	}

	h.logger.Info(h.what + " reloaded successfully")
	w.WriteHeader(http.StatusNoContent)
}
