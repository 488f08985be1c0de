// Package kvstore implements store.Store on a key-value bucket. Objects are
// stored as JSON under "kind:linkID".
package kvstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/store/kv"
)

// Store is a bucket-backed object store.
type Store struct {
	bucket kv.TraversingBucket
}

// New creates a store on bucket.
func New(bucket kv.TraversingBucket) *Store {
	return &Store{bucket: bucket}
}

func (s *Store) Get(ctx context.Context, ref archetype.Reference) (archetype.Object, error) {
	key := ref.String()
	found, err := s.bucket.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return s.read(ctx, key)
}

func (s *Store) Save(ctx context.Context, obj archetype.Object) error {
	data, err := store.Encode(obj)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", obj.Reference(), err)
	}
	if err := s.bucket.Set(ctx, obj.Reference().String(), data); err != nil {
		return fmt.Errorf("writing %s: %w", obj.Reference(), err)
	}
	store.MarkSaved(obj)
	return nil
}

func (s *Store) Remove(ctx context.Context, ref archetype.Reference) error {
	key := ref.String()
	found, err := s.bucket.Has(ctx, key)
	if err != nil {
		return fmt.Errorf("checking %s: %w", key, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err := s.bucket.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, patterns ...string) ([]archetype.Object, error) {
	var out []archetype.Object
	for _, key := range kv.AllKeys(s.bucket) {
		kind, _, ok := strings.Cut(key, ":")
		if !ok || !archetype.MatchesAny(kind, patterns...) {
			continue
		}
		obj, err := s.read(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	store.SortByName(out)
	return out, nil
}

func (s *Store) read(ctx context.Context, key string) (archetype.Object, error) {
	data, err := s.bucket.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	e, err := store.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return e, nil
}
