package workflow

import (
	"errors"
	"fmt"
	"slices"

	goerrors "github.com/go-errors/errors"
)

// ErrNoContext is returned by Workflow.Run when no initial context was set.
var ErrNoContext = errors.New("workflow has no initial context")

// Tasks runs a list of tasks in order. It is itself a Task, so groups nest.
type Tasks struct {
	Base
	tasks       []Task
	breakOnSkip bool
}

// NewTasks creates a sequential group.
func NewTasks(name string, tasks ...Task) *Tasks {
	t := &Tasks{tasks: tasks}
	t.SetName(name)
	return t
}

// Add appends a task.
func (t *Tasks) Add(task Task) {
	t.tasks = append(t.tasks, task)
}

// Len returns the number of tasks.
func (t *Tasks) Len() int {
	return len(t.tasks)
}

// SetBreakOnSkip makes a skipped child end the group with Skipped.
func (t *Tasks) SetBreakOnSkip(b bool) {
	t.breakOnSkip = b
}

// Start runs the tasks against ctx. Every child sees the same context, so
// objects added by one task are visible to the next.
func (t *Tasks) Start(ctx *Context, done Done) {
	s := &sequence{
		name:        t.Name(),
		ctx:         ctx,
		tasks:       slices.Clone(t.tasks),
		breakOnSkip: t.breakOnSkip,
		done:        done,
	}
	s.next()
}

// sequence is the state of one run of a Tasks.
type sequence struct {
	name        string
	ctx         *Context
	tasks       []Task
	breakOnSkip bool
	done        Done

	index    int
	finished bool
	looping  bool
	again    bool
}

// next starts the next child. Children that finish synchronously call next
// from inside step; the call only sets again and the loop picks it up, so the
// stack stays flat however many children complete inline.
func (s *sequence) next() {
	if s.looping {
		s.again = true
		return
	}
	s.looping = true
	for {
		s.again = false
		s.step()
		if !s.again || s.finished {
			break
		}
	}
	s.looping = false
}

func (s *sequence) step() {
	if s.finished {
		return
	}
	if err := s.ctx.Ctx().Err(); err != nil {
		s.finish(Cancel(err))
		return
	}
	if s.index >= len(s.tasks) {
		s.finish(Complete())
		return
	}
	task := s.tasks[s.index]
	s.index++
	s.startChild(task)
}

func (s *sequence) startChild(task Task) {
	defer func() {
		if p := recover(); p != nil {
			s.recovered(task, p)
		}
	}()
	s.ctx.start(s.name, task, func(r Result) {
		s.childDone(task, r)
	})
}

func (s *sequence) childDone(task Task, r Result) {
	if s.finished {
		return
	}
	switch r.Status {
	case Completed:
		s.next()
	case Skipped:
		if s.breakOnSkip {
			s.finish(Skip())
			return
		}
		s.next()
	default:
		if task.Required() {
			s.finish(r)
			return
		}
		s.ctx.Logger().Debug("optional task cancelled, continuing", "workflow", s.name, "task", task.Name())
		s.next()
	}
}

// recovered cancels the sequence after a child panicked.
func (s *sequence) recovered(task Task, p any) {
	err := goerrors.Wrap(p, 3)
	s.ctx.Logger().Error("task panicked",
		"workflow", s.name,
		"task", task.Name(),
		"error", err.Error(),
		"stack", string(err.Stack()),
	)
	if s.finished {
		return
	}
	s.ctx.UI().ShowError(s.name, fmt.Errorf("%s failed: %w", task.Name(), err))
	s.finish(Cancel(err))
}

func (s *sequence) finish(r Result) {
	if s.finished {
		return
	}
	s.finished = true
	s.done(r)
}

// Workflow is a top-level sequence with an optional help topic and initial context.
type Workflow struct {
	Tasks
	helpTopic string
	initial   *Context
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithHelpTopic sets the help topic dialogs link to.
func WithHelpTopic(topic string) WorkflowOption {
	return func(w *Workflow) {
		w.helpTopic = topic
	}
}

// WithContext sets the context Run uses.
func WithContext(ctx *Context) WorkflowOption {
	return func(w *Workflow) {
		w.initial = ctx
	}
}

// New creates a workflow.
func New(name string, tasks ...Task) *Workflow {
	w := &Workflow{}
	w.SetName(name)
	w.tasks = tasks
	return w
}

// With applies options and returns w.
func (w *Workflow) With(opts ...WorkflowOption) *Workflow {
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Context returns the initial context, or nil.
func (w *Workflow) Context() *Context {
	return w.initial
}

func (w *Workflow) Start(ctx *Context, done Done) {
	if w.helpTopic != "" {
		ctx.SetHelpTopic(w.helpTopic)
	}
	w.Tasks.Start(ctx, done)
}

// Run starts the workflow in its initial context as a top-level task, so
// listeners see the workflow itself start and finish.
func (w *Workflow) Run(done Done) {
	if w.initial == nil {
		done(Cancel(ErrNoContext))
		return
	}
	w.initial.start("", w, done)
}
