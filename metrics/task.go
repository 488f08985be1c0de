package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/vetflow/workflow"
)

// TaskMetrics records task outcomes and workflow durations.
type TaskMetrics struct {
	outcomes CounterVec
	duration GaugeVec
	running  Gauge

	mu     sync.Mutex
	active int
}

// NewTaskMetrics registers the task metrics with reg.
func NewTaskMetrics(reg Registry) (*TaskMetrics, error) {
	outcomes, err := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "task_outcomes_total",
		Help: "Finished tasks by task name and status.",
	}, []string{"task", "status"})
	if err != nil {
		return nil, fmt.Errorf("creating outcome counter: %w", err)
	}
	duration, err := reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "workflow_last_duration_seconds",
		Help: "Duration of the most recent run of each workflow, including time waiting for the user.",
	}, []string{"workflow"})
	if err != nil {
		return nil, fmt.Errorf("creating duration gauge: %w", err)
	}
	running, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "workflows_running",
		Help: "Workflows started and not yet finished.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating running gauge: %w", err)
	}
	running.Set(0)
	return &TaskMetrics{outcomes: outcomes, duration: duration, running: running}, nil
}

// Listener returns a listener for one workflow run.
func (m *TaskMetrics) Listener() workflow.Listener {
	return &runListener{metrics: m, started: make(map[string]time.Time)}
}

func (m *TaskMetrics) adjustRunning(delta int) {
	m.mu.Lock()
	m.active += delta
	active := m.active
	m.mu.Unlock()
	m.running.Set(float64(active))
}

// runListener tracks start times for one run. A run's events arrive on one
// goroutine at a time, so it needs no lock.
type runListener struct {
	metrics *TaskMetrics
	started map[string]time.Time
}

func (l *runListener) OnEvent(e workflow.Event) {
	m := l.metrics
	if !e.Terminal() {
		if e.Parent == "" {
			l.started[e.Task] = e.Time
			m.adjustRunning(1)
		}
		return
	}

	m.outcomes.With(prometheus.Labels{"task": e.Task, "status": e.Type.String()}).Inc()
	if e.Parent != "" {
		return
	}
	m.adjustRunning(-1)
	if start, ok := l.started[e.Task]; ok {
		m.duration.With(prometheus.Labels{"workflow": e.Task}).Set(e.Time.Sub(start).Seconds())
		delete(l.started, e.Task)
	}
}
