package appcontext

import (
	"time"

	"github.com/nomis52/vetflow/archetype"
)

// Local is a child scope. Reads fall back to the parent when the local slot is
// empty; writes and removals only ever touch the local store.
type Local struct {
	local  *Default
	parent Context
}

// NewLocal creates a child of parent. A nil parent gives a root scope.
func NewLocal(parent Context) *Local {
	return &Local{local: New(), parent: parent}
}

// Parent returns the parent scope, or nil.
func (c *Local) Parent() Context {
	return c.parent
}

func (c *Local) Get(key Key) archetype.Object {
	if obj := c.local.Get(key); obj != nil {
		return obj
	}
	if c.parent != nil {
		return c.parent.Get(key)
	}
	return nil
}

func (c *Local) Set(key Key, obj archetype.Object) error {
	return c.local.Set(key, obj)
}

func (c *Local) Add(obj archetype.Object) {
	c.local.Add(obj)
}

func (c *Local) Remove(obj archetype.Object) {
	c.local.Remove(obj)
}

func (c *Local) InRange(patterns ...string) archetype.Object {
	if obj := c.local.InRange(patterns...); obj != nil {
		return obj
	}
	if c.parent != nil {
		return c.parent.InRange(patterns...)
	}
	return nil
}

// OwnInRange is InRange without the fallback to the parent.
func (c *Local) OwnInRange(patterns ...string) archetype.Object {
	return c.local.InRange(patterns...)
}

func (c *Local) Resolve(ref archetype.Reference) archetype.Object {
	if obj := c.local.Resolve(ref); obj != nil {
		return obj
	}
	if c.parent != nil {
		return c.parent.Resolve(ref)
	}
	return nil
}

// Objects returns the local objects followed by parent objects not shadowed
// by a local object with the same reference.
func (c *Local) Objects() []archetype.Object {
	out := c.local.Objects()
	if c.parent == nil {
		return out
	}
	seen := make(map[archetype.Reference]bool, len(out))
	for _, obj := range out {
		seen[obj.Reference()] = true
	}
	for _, obj := range c.parent.Objects() {
		if !seen[obj.Reference()] {
			out = append(out, obj)
		}
	}
	return out
}

func (c *Local) Date(key DateKey) time.Time {
	if t := c.local.Date(key); !t.IsZero() {
		return t
	}
	if c.parent != nil {
		return c.parent.Date(key)
	}
	return time.Time{}
}

func (c *Local) SetDate(key DateKey, t time.Time) {
	c.local.SetDate(key, t)
}
