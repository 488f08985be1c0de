package workflows

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nomis52/vetflow/workflow"
)

// ErrUnknownWorkflow is returned by Registry.New for an unregistered name.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Factory builds a workflow ready to Run.
type Factory func(Params) (*workflow.Workflow, error)

// Registry maps workflow names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the workflow registered as name.
func (r *Registry) New(name string, p Params) (*workflow.Workflow, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	wf, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s workflow: %w", name, err)
	}
	return wf, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
