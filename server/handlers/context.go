package handlers

import (
	"net/http"
	"time"

	"github.com/alexedwards/flow"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
)

// ContextResponse is a snapshot of a session's global context.
type ContextResponse struct {
	Slots   map[appcontext.Key]archetype.Object      `json:"slots"`
	Dates   map[appcontext.DateKey]time.Time         `json:"dates,omitempty"`
	History map[appcontext.Key][]archetype.Reference `json:"history,omitempty"`
}

var dateKeys = []appcontext.DateKey{appcontext.ScheduleDate, appcontext.WorkListDate}

// ContextHandler serves a session's global context.
type ContextHandler struct {
	sessions SessionProvider
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(sessions SessionProvider) *ContextHandler {
	return &ContextHandler{sessions: sessions}
}

// ServeHTTP implements http.Handler.
func (h *ContextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(flow.Param(r.Context(), "session"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ContextResponse{
		Slots:   make(map[appcontext.Key]archetype.Object),
		Dates:   make(map[appcontext.DateKey]time.Time),
		History: make(map[appcontext.Key][]archetype.Reference),
	}
	for _, key := range sess.Global.Keys() {
		resp.Slots[key] = sess.Global.Get(key)
		if recent := sess.Global.History(key); len(recent) > 0 {
			refs := make([]archetype.Reference, len(recent))
			for i, obj := range recent {
				refs[i] = obj.Reference()
			}
			resp.History[key] = refs
		}
	}
	for _, key := range dateKeys {
		if d := sess.Global.Date(key); !d.IsZero() {
			resp.Dates[key] = d
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
