package workflow

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/ui"
)

// Create creates an object of a kind, applies properties to it and adds it
// to the context. It evaluates to the new object.
type Create struct {
	Eval[archetype.Object]
	kind  string
	props Properties
}

// NewCreate creates a Create task.
func NewCreate(kind string, props Properties) *Create {
	c := &Create{kind: kind, props: props}
	c.SetName("create " + kind)
	return c
}

func (c *Create) Start(ctx *Context, done Done) {
	obj, err := ctx.Archetypes().Create(c.kind)
	if err == nil {
		err = c.props.Apply(ctx, obj)
	}
	if err != nil {
		ctx.LoggerFor(c).Error("failed to create object", "kind", c.kind, "error", err)
		ctx.UI().ShowError("Create", err)
		done(Cancel(err))
		return
	}
	ctx.Add(obj)
	ctx.LoggerFor(c).Debug("object created", "object", obj.Reference().String())
	c.SetValue(obj, done)
}

// Edit edits an object, either through the UI or in the background, and
// saves it.
type Edit struct {
	Base
	kind                 string
	object               archetype.Object
	create               *Create
	background           bool
	skip                 bool
	showEditorOnError    bool
	deleteOnCancelOrSkip bool
	populate             func(*Context, archetype.Object) error
	title                string
}

// EditOption configures an Edit.
type EditOption func(*Edit)

// ForObject edits obj instead of the context object of the task's kind.
func ForObject(obj archetype.Object) EditOption {
	return func(e *Edit) {
		e.object = obj
	}
}

// CreateFirst creates a new object of the task's kind with props and edits it.
func CreateFirst(props Properties) EditOption {
	return func(e *Edit) {
		e.create = NewCreate(e.kind, props)
	}
}

// InBackground populates, validates and saves without showing an editor.
func InBackground() EditOption {
	return func(e *Edit) {
		e.background = true
	}
}

// AllowSkip offers a Skip action in the editor.
func AllowSkip() EditOption {
	return func(e *Edit) {
		e.skip = true
	}
}

// ShowEditorOnError controls whether an invalid background edit falls back to
// the editor. It defaults to true.
func ShowEditorOnError(show bool) EditOption {
	return func(e *Edit) {
		e.showEditorOnError = show
	}
}

// DeleteOnCancelOrSkip deletes the object when the edit is cancelled or skipped.
func DeleteOnCancelOrSkip() EditOption {
	return func(e *Edit) {
		e.deleteOnCancelOrSkip = true
	}
}

// Populate sets a hook run before a background edit validates the object.
func Populate(fn func(*Context, archetype.Object) error) EditOption {
	return func(e *Edit) {
		e.populate = fn
	}
}

// EditTitle sets the editor title.
func EditTitle(title string) EditOption {
	return func(e *Edit) {
		e.title = title
	}
}

// NewEdit creates an Edit for the context object of kind.
func NewEdit(kind string, opts ...EditOption) *Edit {
	e := &Edit{kind: kind, showEditorOnError: true}
	e.SetName("edit " + kind)
	for _, opt := range opts {
		opt(e)
	}
	if e.title == "" {
		e.title = "Edit " + kind
	}
	return e
}

func (e *Edit) Start(ctx *Context, done Done) {
	if e.create != nil {
		ctx.start(e.Name(), e.create, func(r Result) {
			if r.Status != Completed {
				done(r)
				return
			}
			e.edit(ctx, e.create.Value(), done)
		})
		return
	}
	obj := ctx.object(e.object, e.kind)
	if obj == nil {
		ctx.LoggerFor(e).Warn("no object to edit", "kind", e.kind)
		done(Cancel(fmt.Errorf("%w: %s", ErrMissingObject, e.kind)))
		return
	}
	e.edit(ctx, obj, done)
}

func (e *Edit) edit(ctx *Context, obj archetype.Object, done Done) {
	logger := ctx.LoggerFor(e).With("object", obj.Reference().String())
	if e.background {
		if e.populate != nil {
			if err := e.populate(ctx, obj); err != nil {
				e.fail(ctx, logger, obj, err, done)
				return
			}
		}
		err := ctx.Archetypes().Validate(obj)
		switch {
		case err == nil:
			e.save(ctx, logger, obj, done)
			return
		case !e.showEditorOnError:
			e.fail(ctx, logger, obj, err, done)
			return
		}
		logger.Info("background edit invalid, showing editor", "error", err)
	}
	e.show(ctx, logger, obj, done)
}

func (e *Edit) show(ctx *Context, logger *slog.Logger, obj archetype.Object, done Done) {
	// Current lives in the workflow's context, visible to its tasks but not the session.
	if err := ctx.Set(appcontext.Current, obj); err != nil {
		logger.Warn("failed to set current object", "error", err)
	}
	ctx.UI().Edit(ui.EditRequest{
		Title:       e.title,
		Object:      obj,
		AllowSkip:   e.skip,
		AllowDelete: !obj.IsNew(),
		HelpTopic:   ctx.HelpTopic(),
	}, func(r ui.Reply) {
		if err := ctx.Set(appcontext.Current, nil); err != nil {
			logger.Warn("failed to clear current object", "error", err)
		}
		switch r.Action {
		case ui.OK:
			if err := applyFields(obj, r.Fields); err != nil {
				e.fail(ctx, logger, obj, err, done)
				return
			}
			if err := ctx.Archetypes().Validate(obj); err != nil {
				ctx.UI().ShowError(e.title, err)
				e.show(ctx, logger, obj, done)
				return
			}
			e.save(ctx, logger, obj, done)
		case ui.Skip:
			e.discard(ctx, logger, obj, false)
			done(Skip())
		case ui.Delete:
			e.discard(ctx, logger, obj, true)
			done(Cancel(nil))
		default:
			e.discard(ctx, logger, obj, false)
			done(Cancel(nil))
		}
	})
}

func (e *Edit) save(ctx *Context, logger *slog.Logger, obj archetype.Object, done Done) {
	if err := ctx.Store().Save(ctx.Ctx(), obj); err != nil {
		e.fail(ctx, logger, obj, fmt.Errorf("failed to save %s: %w", obj.Kind(), err), done)
		return
	}
	logger.Info("object saved")
	done(Complete())
}

func (e *Edit) fail(ctx *Context, logger *slog.Logger, obj archetype.Object, err error, done Done) {
	logger.Error("edit failed", "error", err)
	ctx.UI().ShowError(e.title, err)
	e.discard(ctx, logger, obj, false)
	done(Cancel(err))
}

// discard deletes obj when configured to, or when force is set.
func (e *Edit) discard(ctx *Context, logger *slog.Logger, obj archetype.Object, force bool) {
	if !force && !e.deleteOnCancelOrSkip {
		return
	}
	ctx.Remove(obj)
	if obj.IsNew() {
		return
	}
	err := ctx.Store().Remove(ctx.Ctx(), obj.Reference())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("failed to delete object", "error", err)
		ctx.UI().ShowError(e.title, err)
		return
	}
	logger.Info("object deleted")
}

func applyFields(obj archetype.Object, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fs, ok := obj.(archetype.FieldSetter)
	if !ok {
		return fmt.Errorf("%s is not writable", obj.Kind())
	}
	for name, v := range fields {
		if err := fs.SetField(name, v); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}
	return nil
}
