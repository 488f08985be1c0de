package store

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/vetflow/archetype"
)

// Fixture is one object in a fixtures file.
type Fixture struct {
	Kind   string         `yaml:"kind"`
	LinkID string         `yaml:"link_id"`
	Fields map[string]any `yaml:"fields"`
}

// Fixtures is the top-level shape of a fixtures file.
type Fixtures struct {
	Objects []Fixture `yaml:"objects"`
}

// LoadFixtures decodes YAML fixtures from r and saves them to s. Fixtures
// without a link id get a generated one. It returns the saved objects.
func LoadFixtures(ctx context.Context, s Store, r io.Reader) ([]archetype.Object, error) {
	var f Fixtures
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	out := make([]archetype.Object, 0, len(f.Objects))
	for i, fx := range f.Objects {
		if fx.Kind == "" {
			return nil, fmt.Errorf("fixture %d: kind is required", i)
		}
		var e *archetype.Entity
		if fx.LinkID == "" {
			e = archetype.NewEntity(fx.Kind)
		} else {
			e = archetype.NewEntityWithID(fx.Kind, fx.LinkID)
		}
		for name, v := range fx.Fields {
			if err := e.SetField(name, v); err != nil {
				return nil, fmt.Errorf("fixture %d: %w", i, err)
			}
		}
		if err := s.Save(ctx, e); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
