// Package store defines the persistence boundary for domain objects.
//
// Backends live in subpackages: kvstore runs on any kv.TraversingBucket (an
// in-memory map or diskv), and sqlstore runs on database/sql with the sqlite
// or mysql drivers. Retrying wraps any Store with exponential backoff.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nomis52/vetflow/archetype"
)

// ErrNotFound is returned when a referenced object does not exist.
var ErrNotFound = errors.New("object not found")

// Store persists domain objects.
type Store interface {
	// Get loads the object with the given reference.
	Get(ctx context.Context, ref archetype.Reference) (archetype.Object, error)
	// Save inserts or replaces obj and marks it saved.
	Save(ctx context.Context, obj archetype.Object) error
	// Remove deletes the object with the given reference.
	Remove(ctx context.Context, ref archetype.Reference) error
	// Find returns every object whose kind matches one of patterns, ordered by name.
	Find(ctx context.Context, patterns ...string) ([]archetype.Object, error)
}

// saver is implemented by objects that track whether they have been saved.
type saver interface {
	MarkSaved()
}

// MarkSaved flags obj as persisted when it supports it. Backends call this
// after a successful write.
func MarkSaved(obj archetype.Object) {
	if s, ok := obj.(saver); ok {
		s.MarkSaved()
	}
}

// SortByName orders objects by display name and then link id.
func SortByName(objs []archetype.Object) {
	slices.SortFunc(objs, func(a, b archetype.Object) int {
		if c := strings.Compare(nameOf(a), nameOf(b)); c != 0 {
			return c
		}
		return strings.Compare(a.LinkID(), b.LinkID())
	})
}

func nameOf(obj archetype.Object) string {
	fa, ok := obj.(archetype.FieldAccessor)
	if !ok {
		return ""
	}
	v, _ := fa.Field(archetype.FieldName)
	s, _ := v.(string)
	return s
}

// Encode returns the stored form of obj. Only entities can be stored.
func Encode(obj archetype.Object) ([]byte, error) {
	e, ok := obj.(*archetype.Entity)
	if !ok {
		return nil, fmt.Errorf("cannot store %T", obj)
	}
	saved := e.Clone()
	saved.MarkSaved()
	return json.Marshal(saved)
}

// Decode parses the stored form of an object.
func Decode(data []byte) (*archetype.Entity, error) {
	e := new(archetype.Entity)
	if err := json.Unmarshal(data, e); err != nil {
		return nil, err
	}
	return e, nil
}
