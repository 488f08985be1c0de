package server

import (
	"context"
	"fmt"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/store"
)

// EnsurePractice returns the configured practice and location, creating
// them in the store the first time vetflow runs against it.
func EnsurePractice(ctx context.Context, objects store.Store, cfg config.PracticeConfig) ([]archetype.Object, error) {
	practice, err := findOrCreate(ctx, objects, archetype.KindPractice, cfg.Name)
	if err != nil {
		return nil, err
	}
	seed := []archetype.Object{practice}
	if cfg.Location != "" {
		location, err := findOrCreate(ctx, objects, archetype.KindLocation, cfg.Location)
		if err != nil {
			return nil, err
		}
		seed = append(seed, location)
	}
	return seed, nil
}

func findOrCreate(ctx context.Context, objects store.Store, kind, name string) (archetype.Object, error) {
	found, err := objects.Find(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s %q: %w", kind, name, err)
	}
	for _, obj := range found {
		if e, ok := obj.(*archetype.Entity); ok && e.Name() == name {
			return e, nil
		}
	}

	e := archetype.NewEntity(kind)
	e.SetName(name)
	if err := objects.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create %s %q: %w", kind, name, err)
	}
	return e, nil
}
