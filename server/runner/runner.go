// Package runner manages workflow runs for the vetflow server.
//
// The runner handles:
//   - Building a session's workflow from the registry and starting it
//   - Preventing concurrent runs within a session
//   - Tracking each session's current run with live task status and logs
//   - Maintaining history of finished runs
//
// Each run builds its workflow from the current configuration, so config
// changes take effect on the next run. A run usually suspends on its first
// dialog; it continues as the session's dialogs are answered and is recorded
// in history when its workflow reports a result.
//
// # Example
//
//	r := runner.New(logger, configProvider, registry, objects)
//
//	// Start a run
//	if _, err := r.Run(sess, "checkin"); err != nil {
//	    if errors.Is(err, runner.ErrRunInProgress) {
//	        // Handle concurrent run attempt
//	    }
//	}
//
//	// Check status with live task status and logs
//	status, _ := r.Status(sess.ID)
//	if status.State == runner.RunStateRunning {
//	    for _, task := range status.Tasks {
//	        fmt.Printf("%s: %s\n", task.Task, task.Status)
//	    }
//	}
//
//	// Get history
//	history := r.History() // Most recent first
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/logging"
	"github.com/nomis52/vetflow/metrics"
	"github.com/nomis52/vetflow/session"
	"github.com/nomis52/vetflow/status"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/workflow"
	"github.com/nomis52/vetflow/workflows"
)

var (
	// ErrRunInProgress is returned when a session starts a run while one is
	// already running.
	ErrRunInProgress = errors.New("workflow run already in progress")
	// ErrNotFound is returned for an unknown run id.
	ErrNotFound = errors.New("run not found")
)

// Runner manages workflow runs.
type Runner struct {
	logger         *slog.Logger
	configProvider ConfigProvider
	registry       *workflows.Registry
	objects        store.Store
	history        StateStore
	clock          clock.Clock
	archetypes     *archetype.Registry
	metrics        *metrics.TaskMetrics
	tracer         trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]*run // by session id
}

// run is one session's current or last run.
type run struct {
	status   RunStatus // protected by Runner.mu
	statuses *status.StatusHandler
	logs     *logging.LogCollector
}

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for history.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		r.history = store
	}
}

// WithClock sets the clock for run timestamps and task contexts.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithArchetypes sets the archetype registry tasks create objects from.
func WithArchetypes(reg *archetype.Registry) Option {
	return func(r *Runner) {
		r.archetypes = reg
	}
}

// WithTaskMetrics records task outcomes and workflow durations.
func WithTaskMetrics(m *metrics.TaskMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer records a span per task.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// New creates a new Runner. objects is the domain store handed to tasks.
func New(logger *slog.Logger, provider ConfigProvider, registry *workflows.Registry, objects store.Store, opts ...Option) *Runner {
	r := &Runner{
		logger:         logger,
		configProvider: provider,
		registry:       registry,
		objects:        objects,
		history:        NewMemoryStore(),
		clock:          clock.New(),
		runs:           make(map[string]*run),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Run builds the named workflow for sess and starts it. The workflow runs
// until its first dialog before Run returns.
// Returns ErrRunInProgress if the session already has a run in progress.
func (r *Runner) Run(sess *session.Session, name string, objects ...archetype.Object) (RunSummary, error) {
	cfg := r.configProvider.Config()
	if cfg == nil {
		return RunSummary{}, errors.New("no configuration available")
	}

	rn, prev, err := r.reserve(sess, name)
	if err != nil {
		return RunSummary{}, err
	}
	logger := r.logger.With("workflow", name, "session", sess.ID, "run", rn.status.ID)

	listeners := workflow.Listeners{rn.statuses}
	if r.metrics != nil {
		listeners = append(listeners, r.metrics.Listener())
	}
	if r.tracer != nil {
		listeners = append(listeners, workflow.NewTracingListener(r.ctx, r.tracer))
	}

	wf, err := r.registry.New(name, workflows.Params{
		Ctx:    r.ctx,
		Global: sess.Global,
		Services: workflow.Services{
			Store:      r.objects,
			UI:         sess.UI,
			Archetypes: r.archetypes,
			Clock:      r.clock,
			Logger:     logger,
			LoggerHook: logging.NewCapturingLoggerHook(rn.logs),
			Listener:   listeners,
		},
		Config:  cfg,
		Objects: objects,
		Status:  rn.statuses,
	})
	if err != nil {
		r.release(sess.ID, prev)
		return RunSummary{}, err
	}

	logger.Info("starting workflow run")
	sess.UI.Do(func() {
		wf.Run(func(res workflow.Result) {
			r.finish(rn, res)
		})
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	return rn.status.RunSummary, nil
}

// Status returns the session's current or last run with live task status
// and logs.
func (r *Runner) Status(sessionID string) (RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rn, ok := r.runs[sessionID]
	if !ok {
		return RunStatus{}, false
	}
	st := rn.status
	if st.State == RunStateRunning {
		st.Tasks = rn.executions()
	} else {
		st.Tasks = slices.Clone(st.Tasks)
	}
	return st, true
}

// IsRunning returns true if the session has a run in progress.
func (r *Runner) IsRunning(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[sessionID]
	return ok && rn.status.State == RunStateRunning
}

// Running returns the number of runs in progress.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rn := range r.runs {
		if rn.status.State == RunStateRunning {
			n++
		}
	}
	return n
}

// History returns finished runs, most recent first.
func (r *Runner) History() []RunSummary {
	return r.history.History()
}

// Get returns a run by id, finished or in progress.
func (r *Runner) Get(id string) (RunStatus, error) {
	if st, ok := r.history.Get(id); ok {
		return st, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rn := range r.runs {
		if rn.status.ID == id {
			st := rn.status
			st.Tasks = rn.executions()
			return st, nil
		}
	}
	return RunStatus{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Forget drops an idle session's last run.
func (r *Runner) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rn, ok := r.runs[sessionID]; ok && rn.status.State != RunStateRunning {
		delete(r.runs, sessionID)
	}
}

// Prune drops history and idle session runs older than maxAge.
func (r *Runner) Prune(maxAge time.Duration) (int, error) {
	cutoff := r.clock.Now().Add(-maxAge)

	r.mu.Lock()
	for id, rn := range r.runs {
		if rn.status.State != RunStateRunning && rn.status.EndedAt != nil && rn.status.EndedAt.Before(cutoff) {
			delete(r.runs, id)
		}
	}
	r.mu.Unlock()

	n, err := r.history.Prune(cutoff)
	if err != nil {
		return n, fmt.Errorf("failed to prune run history: %w", err)
	}
	if n > 0 {
		r.logger.Info("pruned run history", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// Shutdown cancels the context of every run. Runs stop at their next step.
func (r *Runner) Shutdown() {
	r.cancel()
}

// reserve registers a new running run for sess, returning the run it replaces.
func (r *Runner) reserve(sess *session.Session, name string) (*run, *run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.runs[sess.ID]
	if prev != nil && prev.status.State == RunStateRunning {
		return nil, nil, ErrRunInProgress
	}

	now := r.clock.Now()
	rn := &run{
		status: RunStatus{RunSummary: RunSummary{
			ID:        uuid.NewString(),
			Workflow:  name,
			Session:   sess.ID,
			State:     RunStateRunning,
			StartedAt: &now,
		}},
		statuses: status.NewStatusHandler(),
		logs:     logging.NewLogCollector(),
	}
	if sess.User != nil {
		rn.status.User = sess.User.Reference().String()
	}
	r.runs[sess.ID] = rn
	return rn, prev, nil
}

// release undoes reserve after the workflow failed to build.
func (r *Runner) release(sessionID string, prev *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev != nil {
		r.runs[sessionID] = prev
	} else {
		delete(r.runs, sessionID)
	}
}

// finish transitions from running to idle and records the result.
func (r *Runner) finish(rn *run, res workflow.Result) {
	r.mu.Lock()
	endTime := r.clock.Now()
	rn.status.State = RunStateIdle
	rn.status.EndedAt = &endTime
	rn.status.Result = res.Status.String()
	if res.Err != nil {
		rn.status.Error = res.Err.Error()
	}
	rn.status.Tasks = rn.executions()
	final := rn.status
	final.Tasks = slices.Clone(final.Tasks)
	r.mu.Unlock()

	logger := r.logger.With("workflow", final.Workflow, "session", final.Session, "run", final.ID)
	if res.Err != nil {
		logger.Error("workflow run failed", "result", final.Result, "error", res.Err, "duration", final.Duration())
	} else {
		logger.Info("workflow run finished", "result", final.Result, "duration", final.Duration())
	}

	if err := r.history.Save(final); err != nil {
		logger.Error("failed to save run to store", "error", err)
	}
}

// executions combines task statuses and captured logs, in the order tasks
// started.
func (rn *run) executions() []TaskExecution {
	entries := rn.statuses.Entries()
	logs := rn.logs.GetAllLogs()

	executions := make([]TaskExecution, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Task] = true
		executions = append(executions, TaskExecution{
			Task:   e.Task,
			Status: e.Status,
			Logs:   logs[e.Task],
		})
	}
	// Tasks that logged without reporting status, in the order they logged.
	for _, task := range rn.logs.Tasks() {
		if !seen[task] {
			executions = append(executions, TaskExecution{Task: task, Logs: logs[task]})
		}
	}
	return executions
}
