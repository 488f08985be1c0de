package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/alexedwards/flow"

	"github.com/nomis52/vetflow/server/runner"
)

// HistoryHandler handles requests for the run history.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler. The workflow and user query parameters
// filter runs, and limit caps how many of the most recent are returned.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	history := h.provider.History()
	workflow, user := q.Get("workflow"), q.Get("user")
	history = slices.DeleteFunc(history, func(run runner.RunSummary) bool {
		return (workflow != "" && run.Workflow != workflow) || (user != "" && run.User != user)
	})
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	writeJSON(w, http.StatusOK, history)
}

// HistoryRunHandler handles requests for one run with its task statuses and logs.
type HistoryRunHandler struct {
	provider HistoryProvider
}

// NewHistoryRunHandler creates a new HistoryRunHandler.
func NewHistoryRunHandler(provider HistoryProvider) *HistoryRunHandler {
	return &HistoryRunHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryRunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := flow.Param(r.Context(), "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing run id"})
		return
	}

	run, err := h.provider.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
