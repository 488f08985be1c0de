package runner

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/metrics"
	"github.com/nomis52/vetflow/session"
	"github.com/nomis52/vetflow/store/kv/kvmap"
	"github.com/nomis52/vetflow/store/kvstore"
	"github.com/nomis52/vetflow/ui"
	"github.com/nomis52/vetflow/workflow"
	"github.com/nomis52/vetflow/workflows"
)

type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Config() *config.Config { return s.cfg }

var errBroken = errors.New("printer on fire")

// logTask logs a message and completes.
type logTask struct {
	workflow.Base
	msg string
}

func newLogTask(name, msg string) *logTask {
	t := &logTask{msg: msg}
	t.SetName(name)
	return t
}

func (t *logTask) Start(ctx *workflow.Context, done workflow.Done) {
	ctx.LoggerFor(t).Info(t.msg)
	done(workflow.Complete())
}

func testRegistry() *workflows.Registry {
	reg := workflows.NewRegistry()
	reg.Register("confirm", func(p workflows.Params) (*workflow.Workflow, error) {
		return workflow.New("confirm",
			workflow.NewConfirmation("Proceed", "Continue the visit?"),
			newLogTask("publish", "publishing"),
		).With(workflow.WithContext(p.NewContext())), nil
	})
	reg.Register("broken", func(p workflows.Params) (*workflow.Workflow, error) {
		return workflow.New("broken",
			workflow.NewSynchronous("print", func(*workflow.Context) error { return errBroken }),
		).With(workflow.WithContext(p.NewContext())), nil
	})
	reg.Register("unbuildable", func(workflows.Params) (*workflow.Workflow, error) {
		return nil, errors.New("no practice")
	})
	return reg
}

type harness struct {
	runner   *Runner
	sessions *session.Manager
	clock    *clock.Mock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC))
	sessions := session.NewManager(session.WithClock(c))
	t.Cleanup(sessions.Close)

	opts = append([]Option{WithClock(c)}, opts...)
	r := New(slog.Default(), staticConfig{&config.Config{}}, testRegistry(), kvstore.New(kvmap.NewBucket()), opts...)
	t.Cleanup(r.Shutdown)
	return &harness{runner: r, sessions: sessions, clock: c}
}

func (h *harness) login(t *testing.T) *session.Session {
	t.Helper()
	user := archetype.NewEntity(archetype.KindUser)
	user.SetName("vet")
	s, err := h.sessions.Login(user, archetype.NewEntity(archetype.KindPractice))
	require.NoError(t, err)
	return s
}

func answer(t *testing.T, s *session.Session, action ui.Action) {
	t.Helper()
	pending := s.UI.Pending()
	require.Len(t, pending, 1)
	require.NoError(t, s.UI.Respond(pending[0].ID, ui.Response{Action: action}))
}

func TestRunner_Run(t *testing.T) {
	h := newHarness(t)
	s := h.login(t)

	summary, err := h.runner.Run(s, "confirm")
	require.NoError(t, err)
	assert.Equal(t, "confirm", summary.Workflow)
	assert.Equal(t, s.ID, summary.Session)
	assert.Equal(t, RunStateRunning, summary.State)
	assert.Contains(t, summary.User, archetype.KindUser)
	assert.True(t, h.runner.IsRunning(s.ID))
	assert.Equal(t, 1, h.runner.Running())

	status, ok := h.runner.Status(s.ID)
	require.True(t, ok)
	assert.Equal(t, RunStateRunning, status.State)
	require.Len(t, status.Tasks, 2)
	assert.Equal(t, TaskExecution{Task: "confirm", Status: "running"}, status.Tasks[0])
	assert.Equal(t, TaskExecution{Task: "confirm Proceed", Status: "running"}, status.Tasks[1])

	h.clock.Add(90 * time.Second)
	answer(t, s, ui.OK)

	status, ok = h.runner.Status(s.ID)
	require.True(t, ok)
	assert.Equal(t, RunStateIdle, status.State)
	assert.Equal(t, "completed", status.Result)
	assert.Empty(t, status.Error)
	assert.Equal(t, 90*time.Second, status.Duration())
	assert.False(t, h.runner.IsRunning(s.ID))
	assert.Zero(t, h.runner.Running())

	var publish TaskExecution
	for _, task := range status.Tasks {
		if task.Task == "publish" {
			publish = task
		}
	}
	assert.Equal(t, "completed", publish.Status)
	require.Len(t, publish.Logs, 1)
	assert.Equal(t, "publishing", publish.Logs[0].Message)

	history := h.runner.History()
	require.Len(t, history, 1)
	assert.Equal(t, summary.ID, history[0].ID)

	got, err := h.runner.Get(summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Result)
}

func TestRunner_RunInProgress(t *testing.T) {
	h := newHarness(t)
	s := h.login(t)
	other := h.login(t)

	_, err := h.runner.Run(s, "confirm")
	require.NoError(t, err)

	_, err = h.runner.Run(s, "confirm")
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = h.runner.Run(other, "confirm")
	assert.NoError(t, err, "sessions run independently")

	answer(t, s, ui.Cancel)
	status, _ := h.runner.Status(s.ID)
	assert.Equal(t, "cancelled", status.Result)

	_, err = h.runner.Run(s, "confirm")
	assert.NoError(t, err, "a new run may start once the last finished")
}

func TestRunner_FailedRun(t *testing.T) {
	h := newHarness(t)
	s := h.login(t)

	summary, err := h.runner.Run(s, "broken")
	require.NoError(t, err)

	got, err := h.runner.Get(summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Result)
	assert.Equal(t, errBroken.Error(), got.Error)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, "cancelled: "+errBroken.Error(), got.Tasks[1].Status)
	require.NotEmpty(t, got.Tasks[1].Logs)
	assert.Equal(t, "error", got.Tasks[1].Logs[0].Level)

	errs := s.UI.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "print", errs[0].Title)
}

func TestRunner_BuildErrors(t *testing.T) {
	h := newHarness(t)
	s := h.login(t)

	_, err := h.runner.Run(s, "missing")
	assert.ErrorIs(t, err, workflows.ErrUnknownWorkflow)
	_, ok := h.runner.Status(s.ID)
	assert.False(t, ok, "failed build leaves no run behind")

	_, err = h.runner.Run(s, "broken")
	require.NoError(t, err)
	_, err = h.runner.Run(s, "unbuildable")
	assert.Error(t, err)

	status, ok := h.runner.Status(s.ID)
	require.True(t, ok)
	assert.Equal(t, "broken", status.Workflow, "previous run restored")
	assert.Len(t, h.runner.History(), 1)
}

func TestRunner_Metrics(t *testing.T) {
	reg, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)
	tm, err := metrics.NewTaskMetrics(reg)
	require.NoError(t, err)

	h := newHarness(t, WithTaskMetrics(tm))
	s := h.login(t)
	_, err = h.runner.Run(s, "broken")
	require.NoError(t, err)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "task_outcomes_total")
	assert.Contains(t, names, "workflow_last_duration_seconds")
}

func TestRunner_Prune(t *testing.T) {
	h := newHarness(t)
	s := h.login(t)

	_, err := h.runner.Run(s, "broken")
	require.NoError(t, err)
	h.clock.Add(8 * 24 * time.Hour)

	n, err := h.runner.Prune(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, h.runner.History())
	_, ok := h.runner.Status(s.ID)
	assert.False(t, ok)
}

func TestRunner_SessionContext(t *testing.T) {
	h := newHarness(t)
	s := h.login(t)

	reg := testRegistry()
	reg.Register("publish", func(p workflows.Params) (*workflow.Workflow, error) {
		return workflow.New("publish",
			workflow.NewSynchronous("publish", func(ctx *workflow.Context) error {
				return p.Global.Set(appcontext.Customer, archetype.NewEntity(archetype.KindCustomer))
			}),
		).With(workflow.WithContext(p.NewContext())), nil
	})
	h.runner.registry = reg

	_, err := h.runner.Run(s, "publish")
	require.NoError(t, err)
	assert.NotNil(t, s.Global.Get(appcontext.Customer))
}

func TestRunner_Get_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
