package handlers

import (
	"net/http"
)

// AvailableWorkflowsResponse is the JSON response for /api/workflows.
type AvailableWorkflowsResponse struct {
	Workflows []string `json:"workflows"`
}

// AvailableWorkflowsHandler handles requests for the available workflows endpoint.
type AvailableWorkflowsHandler struct {
	provider WorkflowProvider
}

// NewAvailableWorkflowsHandler creates a new AvailableWorkflowsHandler.
func NewAvailableWorkflowsHandler(provider WorkflowProvider) *AvailableWorkflowsHandler {
	return &AvailableWorkflowsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *AvailableWorkflowsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AvailableWorkflowsResponse{
		Workflows: h.provider.Names(),
	})
}
