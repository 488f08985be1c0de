package runner

import (
	"time"

	"github.com/nomis52/vetflow/logging"
)

// RunState represents the current state of a session's run.
type RunState int

const (
	// RunStateIdle indicates no workflow is running.
	RunStateIdle RunState = iota
	// RunStateRunning indicates a workflow is in progress. It may be
	// waiting on a dialog.
	RunStateRunning
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s RunState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RunState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"running"`:
		*s = RunStateRunning
	default:
		*s = RunStateIdle
	}
	return nil
}

// RunSummary describes one workflow run.
type RunSummary struct {
	ID       string `json:"id"`
	Workflow string `json:"workflow"`
	Session  string `json:"session"`
	User     string `json:"user,omitempty"`
	// State is the current state of the run.
	State RunState `json:"state"`
	// StartedAt is when the run started.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the run ended. Nil if the run is in progress.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// Result is the workflow's final status: completed, cancelled or skipped.
	Result string `json:"result,omitempty"`
	// Error contains the error message if the run failed. Empty otherwise.
	Error string `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (s RunSummary) Duration() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}

// TaskExecution is the status and captured logs of one task.
type TaskExecution struct {
	Task   string             `json:"task"`
	Status string             `json:"status"`
	Logs   []logging.LogEntry `json:"logs,omitempty"`
}

// RunStatus is a run with the tasks it executed.
type RunStatus struct {
	RunSummary
	Tasks []TaskExecution `json:"tasks,omitempty"`
}
