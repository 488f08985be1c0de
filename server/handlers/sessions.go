package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/flow"

	"github.com/nomis52/vetflow/archetype"
)

// LoginRequest defines the request body for POST /api/sessions.
type LoginRequest struct {
	// User is the reference of the security.user logging in, as "kind:id".
	User string `json:"user"`
}

// SessionResponse describes a new session.
type SessionResponse struct {
	ID      string    `json:"id"`
	User    string    `json:"user"`
	Created time.Time `json:"created"`
}

// LoginHandler starts a session for a stored user.
type LoginHandler struct {
	logger   *slog.Logger
	sessions SessionProvider
	objects  ObjectResolver
	seed     SeedProvider
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(logger *slog.Logger, sessions SessionProvider, objects ObjectResolver, seed SeedProvider) *LoginHandler {
	return &LoginHandler{
		logger:   logger,
		sessions: sessions,
		objects:  objects,
		seed:     seed,
	}
}

// ServeHTTP implements http.Handler.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid JSON: %v", err),
		})
		return
	}

	ref, err := archetype.ParseReference(req.User)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	user, err := h.objects.Get(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.sessions.Login(user, h.seed.Seed()...)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		ID:      sess.ID,
		User:    ref.String(),
		Created: sess.Created,
	})
}

// LogoutHandler ends a session and forgets its last run.
type LogoutHandler struct {
	logger   *slog.Logger
	sessions SessionProvider
	runner   WorkflowRunner
}

// NewLogoutHandler creates a new LogoutHandler.
func NewLogoutHandler(logger *slog.Logger, sessions SessionProvider, runner WorkflowRunner) *LogoutHandler {
	return &LogoutHandler{
		logger:   logger,
		sessions: sessions,
		runner:   runner,
	}
}

// ServeHTTP implements http.Handler.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := flow.Param(r.Context(), "session")
	if err := h.sessions.Logout(id); err != nil {
		writeError(w, err)
		return
	}
	h.runner.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}
