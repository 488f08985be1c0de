package runner

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps run history in memory only (no persistence).
type MemoryStore struct {
	runs []RunStatus
	mu   sync.Mutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make([]RunStatus, 0),
	}
}

// History returns all runs as summaries.
func (s *MemoryStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, len(s.runs))
	for i, run := range s.runs {
		result[i] = run.RunSummary
	}
	return result
}

// Get returns the run with the given id.
func (s *MemoryStore) Get(id string) (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			run.Tasks = slices.Clone(run.Tasks)
			return run, true
		}
	}
	return RunStatus{}, false
}

// Save stores a run in memory.
func (s *MemoryStore) Save(run RunStatus) error {
	if run.ID == "" {
		return errors.New("cannot save run without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend to keep most recent first
	s.runs = append([]RunStatus{run}, s.runs...)
	return nil
}

// Prune drops runs that started before cutoff.
func (s *MemoryStore) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.runs)
	s.runs = slices.DeleteFunc(s.runs, func(run RunStatus) bool {
		return run.StartedAt != nil && run.StartedAt.Before(cutoff)
	})
	return before - len(s.runs), nil
}
