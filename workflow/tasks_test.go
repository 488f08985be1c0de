package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nomis52/vetflow/ui"
)

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("task%d", i)
	}
	return out
}

func TestTasksSequencing(t *testing.T) {
	tests := []struct {
		name        string
		results     []Status
		optional    map[int]bool
		breakOnSkip bool
		wantStatus  Status
		wantStarts  int
	}{
		{
			name:       "all complete",
			results:    []Status{Completed, Completed, Completed, Completed},
			wantStatus: Completed,
			wantStarts: 4,
		},
		{
			name:       "required cancel stops the sequence",
			results:    []Status{Completed, Cancelled, Completed, Completed},
			wantStatus: Cancelled,
			wantStarts: 2,
		},
		{
			name:       "optional cancel continues",
			results:    []Status{Completed, Cancelled, Completed},
			optional:   map[int]bool{1: true},
			wantStatus: Completed,
			wantStarts: 3,
		},
		{
			name:       "skip continues",
			results:    []Status{Skipped, Completed},
			wantStatus: Completed,
			wantStarts: 2,
		},
		{
			name:        "skip breaks when configured",
			results:     []Status{Completed, Skipped, Completed},
			breakOnSkip: true,
			wantStatus:  Skipped,
			wantStarts:  2,
		},
		{
			name:       "empty completes",
			wantStatus: Completed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var starts []string
			group := NewTasks("group")
			group.SetBreakOnSkip(tt.breakOnSkip)
			for i, s := range tt.results {
				task := newStub(fmt.Sprintf("task%d", i), &starts, Result{Status: s})
				task.SetRequired(!tt.optional[i])
				group.Add(task)
			}

			var r result
			group.Start(f.ctx, r.done())

			assert.Equal(t, 1, r.calls)
			assert.Equal(t, tt.wantStatus, r.status())
			assert.Equal(t, names(tt.wantStarts)[:tt.wantStarts], starts)
		})
	}
}

func TestTasksAsyncChild(t *testing.T) {
	f := newFixture(t)
	var starts []string
	first := newStub("task0", &starts, Complete())
	first.async = true
	second := newStub("task1", &starts, Complete())

	var r result
	New("wf", first, second).Start(f.ctx, r.done())
	assert.Equal(t, []string{"task0"}, starts)
	assert.Equal(t, 0, r.calls)

	first.pending(Complete())
	assert.Equal(t, []string{"task0", "task1"}, starts)
	assert.Equal(t, Completed, r.status())
}

func TestTasksReportsOnce(t *testing.T) {
	f := newFixture(t)
	var starts []string
	chatty := newStub("task0", &starts, Complete())
	chatty.twice = true

	var r result
	New("wf", chatty, newStub("task1", &starts, Complete())).Start(f.ctx, r.done())
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []string{"task0", "task1"}, starts)
}

func TestTasksPanicCancelsWorkflow(t *testing.T) {
	f := newFixture(t)
	var starts []string
	boom := newStub("task1", &starts, Complete())
	boom.panics = true
	boom.SetRequired(false)

	var r result
	New("wf",
		newStub("task0", &starts, Complete()),
		boom,
		newStub("task2", &starts, Complete()),
	).Start(f.ctx, r.done())

	require.Equal(t, 1, r.calls)
	assert.Equal(t, Cancelled, r.status())
	assert.ErrorContains(t, r.got[0].Err, "stub exploded")
	assert.Equal(t, []string{"task0", "task1"}, starts)
	require.Len(t, f.queue.Errors(), 1)
	assert.Contains(t, f.queue.Errors()[0].Message, "task1 failed")
}

func TestTasksSynchronousChainDoesNotRecurse(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	wf := New("long")
	for i := 0; i < 100000; i++ {
		wf.Add(newStub("step", nil, Complete()))
	}
	var r result
	wf.Start(f.ctx, r.done())
	assert.Equal(t, Completed, r.status())
}

func TestTasksNestedGroupRequiredFlag(t *testing.T) {
	f := newFixture(t)
	var starts []string
	inner := NewTasks("inner", newStub("task0", &starts, Cancel(nil)))
	inner.SetRequired(false)

	var r result
	New("outer", inner, newStub("task1", &starts, Complete())).Start(f.ctx, r.done())
	assert.Equal(t, Completed, r.status())
	assert.Equal(t, []string{"task0", "task1"}, starts)
}

func TestTasksContextCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	tctx := f.newContext(ctx)

	var starts []string
	first := newStub("task0", &starts, Complete())
	first.async = true

	var r result
	New("wf", first, newStub("task1", &starts, Complete())).Start(tctx, r.done())
	cancel()
	first.pending(Complete())

	assert.Equal(t, Cancelled, r.status())
	assert.ErrorIs(t, r.got[0].Err, context.Canceled)
	assert.Equal(t, []string{"task0"}, starts)
}

func TestWorkflowRun(t *testing.T) {
	t.Run("requires a context", func(t *testing.T) {
		var r result
		New("wf").Run(r.done())
		assert.Equal(t, Cancelled, r.status())
		assert.ErrorIs(t, r.got[0].Err, ErrNoContext)
	})

	t.Run("reports events", func(t *testing.T) {
		f := newFixture(t)
		wf := New("wf", newStub("a", nil, Complete()), newStub("b", nil, Skip())).
			With(WithContext(f.ctx), WithHelpTopic("checkin"))

		var r result
		wf.Run(r.done())
		assert.Equal(t, Completed, r.status())
		assert.Equal(t, "checkin", f.ctx.HelpTopic())

		var got []string
		for _, e := range f.events {
			got = append(got, e.Type.String()+":"+e.Task+"<"+e.Parent)
		}
		assert.Equal(t, []string{
			"started:wf<",
			"started:a<wf",
			"completed:a<wf",
			"started:b<wf",
			"skipped:b<wf",
			"completed:wf<",
		}, got)
		assert.False(t, f.events[0].Terminal())
		assert.True(t, f.events[5].Terminal())
	})
}

func TestConditional(t *testing.T) {
	tests := []struct {
		name       string
		answer     ui.Action
		body       Result
		wantStatus Status
		wantBody   bool
	}{
		{name: "false never starts the body", answer: ui.No, body: Cancel(nil), wantStatus: Completed},
		{name: "true passes the body result", answer: ui.Yes, body: Skip(), wantStatus: Skipped, wantBody: true},
		{name: "cancelled condition", answer: ui.Cancel, body: Complete(), wantStatus: Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var starts []string
			cond := NewConditional(
				NewConfirmation("Weigh", "Weigh the patient?", YesNo()),
				newStub("body", &starts, tt.body),
			)

			var r result
			cond.Start(f.ctx, r.done())
			dialog := f.respond(t, ui.Response{Action: tt.answer})
			assert.Equal(t, ui.DialogConfirm, dialog.Type)

			assert.Equal(t, tt.wantStatus, r.status())
			assert.Equal(t, tt.wantBody, len(starts) == 1)
		})
	}
}
