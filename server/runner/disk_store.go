package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"
)

// DiskStore persists run history to disk as JSON files, one per run.
type DiskStore struct {
	dir      string
	logger   *slog.Logger
	maxCount int
	runs     []RunStatus // protected by mu, most recent first
	mu       sync.Mutex
}

// NewDiskStore creates a new disk-backed store keeping at most maxCount runs
// in memory. The directory is created if it doesn't exist, and existing runs
// are loaded.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:      dir,
		logger:   logger,
		maxCount: maxCount,
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.Reload(); err != nil {
		logger.Warn("failed to load existing runs", "error", err)
	}
	return s, nil
}

// History returns all loaded runs as summaries.
func (s *DiskStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, len(s.runs))
	for i, run := range s.runs {
		result[i] = run.RunSummary
	}
	return result
}

// Get returns the run with the given id.
func (s *DiskStore) Get(id string) (RunStatus, bool) {
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

// Save persists a run to disk and updates the in-memory representation.
func (s *DiskStore) Save(run RunStatus) error {
	if run.StartedAt == nil {
		return errors.New("cannot save run without start time")
	}
	if run.ID == "" {
		return errors.New("cannot save run without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 2006-01-02T15-04-05_<id>.json sorts by start time
	filename := run.StartedAt.UTC().Format("2006-01-02T15-04-05") + "_" + run.ID + ".json"
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}

	s.runs = append([]RunStatus{run}, s.runs...)
	if len(s.runs) > s.maxCount {
		s.runs = s.runs[:s.maxCount]
	}

	s.logger.Debug("saved run to disk", "path", path)
	return nil
}

// Prune deletes the files of runs that started before cutoff.
func (s *DiskStore) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read state directory: %w", err)
	}

	var errs []error
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		run, err := readRun(path)
		if err != nil || run.StartedAt == nil || !run.StartedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	s.runs = slices.DeleteFunc(s.runs, func(run RunStatus) bool {
		return run.StartedAt != nil && run.StartedAt.Before(cutoff)
	})
	return removed, errors.Join(errs...)
}

// Reload re-loads all runs from disk.
func (s *DiskStore) Reload() error {
	runs, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = runs
	return nil
}

// load loads the most recent maxCount runs from disk.
func (s *DiskStore) load() ([]RunStatus, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	runs := make([]RunStatus, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		run, err := readRun(path)
		if err != nil {
			s.logger.Warn("failed to read run file", "file", path, "error", err)
			continue
		}
		if run.ID == "" {
			s.logger.Warn("ignoring run file without id", "file", path)
			continue
		}
		runs = append(runs, run)
	}

	// Sort by start time descending (most recent first)
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt == nil {
			return false
		}
		if runs[j].StartedAt == nil {
			return true
		}
		return runs[i].StartedAt.After(*runs[j].StartedAt)
	})

	if len(runs) > s.maxCount {
		runs = runs[:s.maxCount]
	}

	s.logger.Info("loaded run history from disk", "count", len(runs))
	return runs, nil
}

func readRun(path string) (RunStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunStatus{}, err
	}
	var run RunStatus
	if err := json.Unmarshal(data, &run); err != nil {
		return RunStatus{}, fmt.Errorf("failed to parse run file: %w", err)
	}
	return run, nil
}
