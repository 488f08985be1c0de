package workflow

import (
	"fmt"

	"github.com/nomis52/vetflow/archetype"
)

// Update applies properties to an object and optionally saves it.
type Update struct {
	Base
	kind   string
	object archetype.Object
	props  Properties
	save   bool
}

// UpdateOption configures an Update.
type UpdateOption func(*Update)

// UpdateObject updates obj instead of the context object of the task's kind.
func UpdateObject(obj archetype.Object) UpdateOption {
	return func(u *Update) {
		u.object = obj
	}
}

// NoSave applies the properties without saving.
func NoSave() UpdateOption {
	return func(u *Update) {
		u.save = false
	}
}

// NewUpdate creates an Update for the context object of kind.
func NewUpdate(kind string, props Properties, opts ...UpdateOption) *Update {
	u := &Update{kind: kind, props: props, save: true}
	u.SetName("update " + kind)
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Update) Start(ctx *Context, done Done) {
	logger := ctx.LoggerFor(u)
	obj := ctx.object(u.object, u.kind)
	if obj == nil {
		logger.Warn("no object to update", "kind", u.kind)
		done(Cancel(fmt.Errorf("%w: %s", ErrMissingObject, u.kind)))
		return
	}
	if err := u.props.Apply(ctx, obj); err != nil {
		logger.Error("failed to update object", "object", obj.Reference().String(), "error", err)
		ctx.UI().ShowError(u.Name(), err)
		done(Cancel(err))
		return
	}
	if u.save {
		if err := ctx.Store().Save(ctx.Ctx(), obj); err != nil {
			err = fmt.Errorf("failed to save %s: %w", obj.Kind(), err)
			logger.Error("update failed", "object", obj.Reference().String(), "error", err)
			ctx.UI().ShowError(u.Name(), err)
			done(Cancel(err))
			return
		}
	}
	logger.Info("object updated", "object", obj.Reference().String(), "saved", u.save)
	done(Complete())
}

// Reload replaces the context object of a kind with a fresh copy from the store.
type Reload struct {
	Base
	kind string
}

// NewReload creates a Reload.
func NewReload(kind string) *Reload {
	r := &Reload{kind: kind}
	r.SetName("reload " + kind)
	return r
}

func (r *Reload) Start(ctx *Context, done Done) {
	logger := ctx.LoggerFor(r)
	obj := ctx.InRange(r.kind)
	if obj == nil {
		logger.Warn("no object to reload", "kind", r.kind)
		done(Cancel(fmt.Errorf("%w: %s", ErrMissingObject, r.kind)))
		return
	}
	fresh, err := ctx.Store().Get(ctx.Ctx(), obj.Reference())
	if err != nil {
		err = fmt.Errorf("failed to reload %s: %w", obj.Kind(), err)
		logger.Error("reload failed", "error", err)
		ctx.UI().ShowError(r.Name(), err)
		done(Cancel(err))
		return
	}
	ctx.Add(fresh)
	done(Complete())
}
