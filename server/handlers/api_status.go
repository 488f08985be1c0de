package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/vetflow/server/types"
)

// NextRunResponse describes the next housekeeping run.
type NextRunResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	Practice     string                 `json:"practice"`
	Sessions     int                    `json:"sessions"`
	Running      int                    `json:"running"`
	Housekeeping NextRunResponse        `json:"housekeeping"`
	Server       types.ServerProperties `json:"server"`
}

// APIStatusProvider aggregates all the providers needed for the status endpoint.
type APIStatusProvider interface {
	ConfigProvider
	ActiveSessions() int
	RunningWorkflows() int
	NextSweep() *time.Time
	Properties() types.ServerProperties
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	provider APIStatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(provider APIStatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := APIStatusResponse{
		Sessions: h.provider.ActiveSessions(),
		Running:  h.provider.RunningWorkflows(),
		Server:   h.provider.Properties(),
	}
	if cfg := h.provider.Config(); cfg != nil {
		resp.Practice = cfg.Practice.Name
	}
	next := h.provider.NextSweep()
	resp.Housekeeping = NextRunResponse{
		Scheduled: next != nil,
		NextRun:   next,
	}
	writeJSON(w, http.StatusOK, resp)
}
