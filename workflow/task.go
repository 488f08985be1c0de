package workflow

import (
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrMissingObject is returned when a task needs a context object that is absent.
var ErrMissingObject = errors.New("object not found in context")

// Status is how a task finished.
type Status int

const (
	Completed Status = iota + 1
	Cancelled
	Skipped
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is reported once per Start.
type Result struct {
	Status Status
	// Err is set when a cancellation was caused by an error rather than the user.
	Err error
}

// Complete returns a Completed result.
func Complete() Result { return Result{Status: Completed} }

// Skip returns a Skipped result.
func Skip() Result { return Result{Status: Skipped} }

// Cancel returns a Cancelled result. err may be nil for a user cancellation.
func Cancel(err error) Result { return Result{Status: Cancelled, Err: err} }

// Done receives a task's result.
type Done func(Result)

// Task is a unit of work in a workflow.
type Task interface {
	Name() string
	// Required reports whether cancelling this task cancels its container.
	Required() bool
	SetRequired(required bool)
	// Start runs the task. It must not block, and must report to done exactly once.
	Start(ctx *Context, done Done)
}

// Base holds the name and required flag shared by all tasks. Tasks are
// required unless SetRequired(false) is called.
type Base struct {
	name     string
	optional bool
}

func (b *Base) Name() string {
	return b.name
}

// SetName sets the task's name.
func (b *Base) SetName(name string) {
	b.name = name
}

func (b *Base) Required() bool {
	return !b.optional
}

func (b *Base) SetRequired(required bool) {
	b.optional = !required
}

// Optional marks t as not required and returns it.
func Optional[T Task](t T) T {
	t.SetRequired(false)
	return t
}

// once returns a Done that forwards only the first result.
func once(logger *slog.Logger, name string, done Done) Done {
	var fired atomic.Bool
	return func(r Result) {
		if !fired.CompareAndSwap(false, true) {
			logger.Warn("task reported more than once", "task", name, "status", r.Status)
			return
		}
		done(r)
	}
}
