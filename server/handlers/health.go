package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/nomis52/vetflow/buildinfo"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler answers "ok" when every check passes, and 503 listing the
// failures otherwise. The build commit is reported in the X-Vetflow-Commit
// header.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a HealthHandler running checks, keyed by name.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Vetflow-Commit", buildinfo.Get().GitCommit)

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var failures []string
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(failures) > 0 {
		slices.Sort(failures)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(strings.Join(failures, "\n")))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
