package runner

import "time"

// StateStore manages persistence of run history.
type StateStore interface {
	// History returns finished runs, most recent first.
	History() []RunSummary
	// Get returns a finished run with its tasks.
	Get(id string) (RunStatus, bool)
	// Save records a finished run.
	Save(RunStatus) error
	// Prune drops runs that started before cutoff and returns how many.
	Prune(cutoff time.Time) (int, error)
}
