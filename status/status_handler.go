package status

import (
	"slices"
	"sync"

	"github.com/nomis52/vetflow/workflow"
)

// Entry is the status of one task.
type Entry struct {
	Task   string `json:"task"`
	Status string `json:"status"`
}

// StatusHandler stores status messages by task name, in the order tasks
// first reported.
type StatusHandler struct {
	mu       sync.RWMutex
	order    []string
	statuses map[string]string
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{
		statuses: make(map[string]string),
	}
}

// Set updates the status for a task.
func (sh *StatusHandler) Set(task, status string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.statuses[task]; !ok {
		sh.order = append(sh.order, task)
	}
	sh.statuses[task] = status
}

// Get returns the status for a task.
func (sh *StatusHandler) Get(task string) string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.statuses[task]
}

// All returns a copy of all task statuses.
func (sh *StatusHandler) All() map[string]string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make(map[string]string, len(sh.statuses))
	for k, v := range sh.statuses {
		out[k] = v
	}
	return out
}

// Entries returns the statuses in report order.
func (sh *StatusHandler) Entries() []Entry {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]Entry, 0, len(sh.order))
	for _, task := range slices.Clone(sh.order) {
		out = append(out, Entry{Task: task, Status: sh.statuses[task]})
	}
	return out
}

// OnEvent records task starts and outcomes.
func (sh *StatusHandler) OnEvent(e workflow.Event) {
	switch {
	case e.Type == workflow.EventStarted:
		sh.Set(e.Task, "running")
	case e.Err != nil:
		sh.Set(e.Task, e.Type.String()+": "+e.Err.Error())
	default:
		sh.Set(e.Task, e.Type.String())
	}
}
