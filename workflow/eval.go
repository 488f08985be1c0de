package workflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nomis52/vetflow/archetype"
)

// EvalTask is a task that produces a value.
type EvalTask[T any] interface {
	Task
	// Value returns the value of the last completed run.
	Value() T
}

// Eval holds an evaluated value. Embed it to build an EvalTask.
type Eval[T any] struct {
	Base
	mu    sync.RWMutex
	value T
}

func (e *Eval[T]) Value() T {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// SetValue stores v and completes the task.
func (e *Eval[T]) SetValue(v T, done Done) {
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
	done(Complete())
}

// EvalFunc evaluates a function of the context. An error cancels the task.
type EvalFunc[T any] struct {
	Eval[T]
	fn func(*Context) (T, error)
}

// NewEvalFunc creates an EvalFunc.
func NewEvalFunc[T any](name string, fn func(*Context) (T, error)) *EvalFunc[T] {
	e := &EvalFunc[T]{fn: fn}
	e.SetName(name)
	return e
}

func (e *EvalFunc[T]) Start(ctx *Context, done Done) {
	v, err := e.fn(ctx)
	if err != nil {
		ctx.LoggerFor(e).Warn("evaluation failed", "error", err)
		done(Cancel(err))
		return
	}
	e.SetValue(v, done)
}

// NodeEval reads a field of the context object matching a kind pattern.
type NodeEval[T any] struct {
	Eval[T]
	kind  string
	field archetype.Field[T]
}

// NewNodeEval creates a NodeEval.
func NewNodeEval[T any](kind string, field archetype.Field[T]) *NodeEval[T] {
	e := &NodeEval[T]{kind: kind, field: field}
	e.SetName(fmt.Sprintf("eval %s.%s", kind, field.Name()))
	return e
}

func (e *NodeEval[T]) Start(ctx *Context, done Done) {
	obj := ctx.InRange(e.kind)
	if obj == nil {
		ctx.LoggerFor(e).Warn("no object to evaluate", "kind", e.kind)
		done(Cancel(fmt.Errorf("%w: %s", ErrMissingObject, e.kind)))
		return
	}
	fa, ok := obj.(archetype.FieldAccessor)
	if !ok {
		done(Cancel(fmt.Errorf("%s has no fields", obj.Kind())))
		return
	}
	v, err := e.field.Get(fa)
	if err != nil {
		ctx.LoggerFor(e).Warn("field evaluation failed", "object", obj.Reference().String(), "error", err)
		done(Cancel(err))
		return
	}
	e.SetValue(v, done)
}

// NodeCondition compares a field of a context object against an expected
// value. A missing object cancels the task without producing a value; an
// object without the field compares as the zero value.
type NodeCondition[T comparable] struct {
	Eval[bool]
	kind     string
	field    archetype.Field[T]
	expected T
	negate   bool
}

// NewNodeCondition creates a condition that is true when the field equals expected.
func NewNodeCondition[T comparable](kind string, field archetype.Field[T], expected T) *NodeCondition[T] {
	c := &NodeCondition[T]{kind: kind, field: field, expected: expected}
	c.SetName(fmt.Sprintf("%s.%s == %v", kind, field.Name(), expected))
	return c
}

// NewNodeNotCondition creates a condition that is true when the field differs from expected.
func NewNodeNotCondition[T comparable](kind string, field archetype.Field[T], expected T) *NodeCondition[T] {
	c := NewNodeCondition(kind, field, expected)
	c.negate = true
	c.SetName(fmt.Sprintf("%s.%s != %v", kind, field.Name(), expected))
	return c
}

func (c *NodeCondition[T]) Start(ctx *Context, done Done) {
	obj := ctx.InRange(c.kind)
	if obj == nil {
		ctx.LoggerFor(c).Warn("no object for condition", "kind", c.kind)
		done(Cancel(fmt.Errorf("%w: %s", ErrMissingObject, c.kind)))
		return
	}
	var v T
	if fa, ok := obj.(archetype.FieldAccessor); ok {
		got, err := c.field.Get(fa)
		switch {
		case err == nil:
			v = got
		case !errors.Is(err, archetype.ErrFieldNotSet):
			done(Cancel(err))
			return
		}
	}
	c.SetValue(equal(v, c.expected) != c.negate, done)
}

// equal uses a Compare method when T has one, so values such as time.Time
// compare by instant rather than by representation.
func equal[T comparable](a, b T) bool {
	if c, ok := any(a).(interface{ Compare(T) int }); ok {
		return c.Compare(b) == 0
	}
	return a == b
}

// Conditional runs Body only when Condition evaluates to true.
type Conditional struct {
	Base
	condition EvalTask[bool]
	body      Task
}

// NewConditional creates a Conditional.
func NewConditional(condition EvalTask[bool], body Task) *Conditional {
	c := &Conditional{condition: condition, body: body}
	c.SetName("if " + condition.Name())
	return c
}

// Start evaluates the condition. A cancelled or skipped condition is passed
// on; false completes without starting the body; true passes on the body's
// result unchanged.
func (c *Conditional) Start(ctx *Context, done Done) {
	ctx.start(c.Name(), c.condition, func(r Result) {
		if r.Status != Completed {
			done(r)
			return
		}
		if !c.condition.Value() {
			done(Complete())
			return
		}
		ctx.start(c.Name(), c.body, done)
	})
}
