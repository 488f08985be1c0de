package workflow

import (
	"github.com/nomis52/vetflow/appcontext"
)

// Synchronous runs a function as a task. A nil error completes; an error is
// shown and cancels.
type Synchronous struct {
	Base
	fn func(*Context) error
}

// NewSynchronous creates a Synchronous task.
func NewSynchronous(name string, fn func(*Context) error) *Synchronous {
	s := &Synchronous{fn: fn}
	s.SetName(name)
	return s
}

func (s *Synchronous) Start(ctx *Context, done Done) {
	if err := s.fn(ctx); err != nil {
		ctx.LoggerFor(s).Error("task failed", "error", err)
		ctx.UI().ShowError(s.Name(), err)
		done(Cancel(err))
		return
	}
	done(Complete())
}

// Local runs a task in a child scope so objects it adds do not leak into the
// caller's context. On completion the listed slots are copied back.
type Local struct {
	Base
	task      Task
	propagate []appcontext.Key
}

// NewLocal creates a Local.
func NewLocal(task Task, propagate ...appcontext.Key) *Local {
	l := &Local{task: task, propagate: propagate}
	l.SetName(task.Name())
	l.SetRequired(task.Required())
	return l
}

func (l *Local) Start(ctx *Context, done Done) {
	child := ctx.Child()
	child.start(l.Name(), l.task, func(r Result) {
		if r.Status == Completed {
			for _, k := range l.propagate {
				if obj := child.Get(k); obj != nil {
					if err := ctx.Set(k, obj); err != nil {
						ctx.LoggerFor(l).Warn("failed to propagate object", "key", k, "error", err)
					}
				}
			}
		}
		done(r)
	})
}
