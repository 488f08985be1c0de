package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/vetflow/server/runner"
)

type staticHistory []runner.RunSummary

func (h staticHistory) History() []runner.RunSummary {
	return append([]runner.RunSummary(nil), h...)
}

func (h staticHistory) Get(id string) (runner.RunStatus, error) {
	for _, s := range h {
		if s.ID == id {
			return runner.RunStatus{RunSummary: s}, nil
		}
	}
	return runner.RunStatus{}, runner.ErrNotFound
}

func TestHistoryHandler_Filters(t *testing.T) {
	history := staticHistory{
		{ID: "r3", Workflow: "weigh", User: "security.user:u1"},
		{ID: "r2", Workflow: "checkin", User: "security.user:u2"},
		{ID: "r1", Workflow: "checkin", User: "security.user:u1"},
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"r3", "r2", "r1"}},
		{"?workflow=checkin", []string{"r2", "r1"}},
		{"?user=security.user:u1", []string{"r3", "r1"}},
		{"?workflow=checkin&user=security.user:u1", []string{"r1"}},
		{"?limit=2", []string{"r3", "r2"}},
		{"?workflow=discharge", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHistoryHandler(history).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history"+tt.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			ids := []string{}
			for _, run := range decode[[]runner.RunSummary](t, w) {
				ids = append(ids, run.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	w := httptest.NewRecorder()
	NewHistoryHandler(history).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
