package codegen

import (
	"fmt"
	"sort"
)

// Factory builds a pass for a project. It returns false when the project
// lacks the inputs the pass needs.
type Factory func(p *Project) (Generator, bool)

// Registry manages the available generation passes
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a new, empty pass registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a pass factory under name, replacing any earlier one
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Get returns the pass factory registered under name
func (r *Registry) Get(name string) (Factory, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown generation pass: %s", name)
	}
	return factory, nil
}

// Names returns the registered pass names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
