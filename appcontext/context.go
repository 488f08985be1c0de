// Package appcontext provides the hierarchical object context workflows use
// to pass state between tasks.
//
// A context is a set of named slots, each holding at most one object. Slots are
// typed: the well-known keys are kind patterns and Set rejects an object whose
// kind does not match. Three implementations cover the scopes a session needs:
//
//   - Default: a plain slot store.
//   - Local: a child scope that reads through to a parent but writes locally.
//   - Global: the session scope, with change listeners and per-slot history.
package appcontext

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nomis52/vetflow/archetype"
)

// ErrKindMismatch is returned when an object is set in a slot that does not accept its kind.
var ErrKindMismatch = errors.New("object kind does not match slot")

// Context is a scoped store of domain objects.
type Context interface {
	// Get returns the object in a slot, or nil.
	Get(key Key) archetype.Object
	// Set stores obj in a slot. A nil obj clears the slot.
	Set(key Key, obj archetype.Object) error
	// Add stores obj in the slot its kind routes to.
	Add(obj archetype.Object)
	// Remove clears every slot holding obj.
	Remove(obj archetype.Object)
	// InRange returns the first object whose kind matches one of patterns.
	InRange(patterns ...string) archetype.Object
	// Resolve returns the object with the given reference.
	Resolve(ref archetype.Reference) archetype.Object
	// Objects returns every object held.
	Objects() []archetype.Object
	// Date returns a date slot, or the zero time.
	Date(key DateKey) time.Time
	// SetDate sets a date slot. The zero time clears it.
	SetDate(key DateKey, t time.Time)
}

// Default is the base Context implementation. It is safe for concurrent use.
type Default struct {
	mu      sync.RWMutex
	objects map[Key]archetype.Object
	dates   map[DateKey]time.Time
}

// New creates an empty context.
func New() *Default {
	return &Default{
		objects: make(map[Key]archetype.Object),
		dates:   make(map[DateKey]time.Time),
	}
}

func (c *Default) Get(key Key) archetype.Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.objects[key]
}

func (c *Default) Set(key Key, obj archetype.Object) error {
	if obj != nil && !key.Accepts(obj.Kind()) {
		return fmt.Errorf("%w: cannot set %s in %s", ErrKindMismatch, obj.Kind(), key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if obj == nil {
		delete(c.objects, key)
		return nil
	}
	c.objects[key] = obj
	return nil
}

func (c *Default) Add(obj archetype.Object) {
	if obj == nil {
		return
	}
	// KeyFor always returns a slot that accepts the kind.
	_ = c.Set(KeyFor(obj.Kind()), obj)
}

func (c *Default) Remove(obj archetype.Object) {
	c.removeAll(obj)
}

// removeAll clears the slots holding obj and returns them.
func (c *Default) removeAll(obj archetype.Object) []Key {
	if obj == nil {
		return nil
	}
	ref := obj.Reference()
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []Key
	for k, v := range c.objects {
		if v.Reference() == ref {
			delete(c.objects, k)
			removed = append(removed, k)
		}
	}
	return removed
}

func (c *Default) InRange(patterns ...string) archetype.Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range c.orderedKeys() {
		obj := c.objects[k]
		if archetype.MatchesAny(obj.Kind(), patterns...) {
			return obj
		}
	}
	return nil
}

func (c *Default) Resolve(ref archetype.Reference) archetype.Object {
	if ref.IsZero() {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range c.orderedKeys() {
		if obj := c.objects[k]; obj.Reference() == ref {
			return obj
		}
	}
	return nil
}

func (c *Default) Objects() []archetype.Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []archetype.Object
	seen := make(map[archetype.Reference]bool, len(c.objects))
	for _, k := range c.orderedKeys() {
		obj := c.objects[k]
		if seen[obj.Reference()] {
			continue
		}
		seen[obj.Reference()] = true
		out = append(out, obj)
	}
	return out
}

// Keys returns the occupied slots.
func (c *Default) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orderedKeys()
}

func (c *Default) Date(key DateKey) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dates[key]
}

func (c *Default) SetDate(key DateKey, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.IsZero() {
		delete(c.dates, key)
		return
	}
	c.dates[key] = t
}

// reset empties the context and returns the slots that were occupied.
func (c *Default) reset() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.orderedKeys()
	c.objects = make(map[Key]archetype.Object)
	c.dates = make(map[DateKey]time.Time)
	return keys
}

// orderedKeys returns occupied slots: well-known slots in routing order, then
// other kinds sorted, then User and Current. Callers hold mu.
func (c *Default) orderedKeys() []Key {
	keys := make([]Key, 0, len(c.objects))
	for _, k := range routed {
		if _, ok := c.objects[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []Key
	for k := range c.objects {
		if k != User && k != Current && !slices.Contains(routed, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	keys = append(keys, rest...)
	for _, k := range []Key{User, Current} {
		if _, ok := c.objects[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}
