package processor

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh processor instance.
type Factory func() Processor

// Registry maps entry points to processor factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new, empty processor registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under entryPoint, replacing any previous one.
func (r *Registry) Register(entryPoint string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[entryPoint] = f
}

// Lookup builds the processor registered under entryPoint.
func (r *Registry) Lookup(entryPoint string) (Processor, error) {
	r.mu.RLock()
	f, ok := r.factories[entryPoint]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntryPoint, entryPoint)
	}
	return f(), nil
}

// ByName builds the registered processor whose Name matches name.
func (r *Registry) ByName(name string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.factories {
		if p := f(); p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no processor named %q", ErrUnknownEntryPoint, name)
}

// EntryPoints returns all registered entry points, sorted.
func (r *Registry) EntryPoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eps := make([]string, 0, len(r.factories))
	for ep := range r.factories {
		eps = append(eps, ep)
	}
	sort.Strings(eps)
	return eps
}

// Names returns the names of all registered processors, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for _, f := range r.factories {
		names = append(names, f().Name())
	}
	sort.Strings(names)
	return names
}
