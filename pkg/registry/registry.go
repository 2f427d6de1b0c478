package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/pathflow/pkg/domain"
)

// ErrUnknownAction is returned when no factory is registered under a name.
var ErrUnknownAction = errors.New("unknown action")

// Factory builds an action from the arguments written in a signal file.
type Factory func(args map[string]any) (*domain.Action, error)

// Registry maps action names to factories.
// It is what lets declarative signal files refer to Go code by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry.
// If a factory with the same name exists, it is overwritten.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// RegisterAction registers a ready-made action. Each Build returns a copy
// renamed as requested, so arguments are ignored.
func (r *Registry) RegisterAction(a *domain.Action) {
	proto := *a
	proto.Outputs = slices.Clone(a.Outputs)
	r.Register(a.Name, func(map[string]any) (*domain.Action, error) {
		out := proto
		out.Outputs = slices.Clone(proto.Outputs)
		return &out, nil
	})
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Build looks up a factory by name and builds an action.
// When label is not empty it replaces the action name, so the same factory
// can appear several times in one tree under distinct names.
func (r *Registry) Build(name, label string, args map[string]any) (*domain.Action, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}

	a, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("build action %s: %w", name, err)
	}
	if a == nil {
		return nil, fmt.Errorf("build action %s: factory returned nil", name)
	}
	if label != "" {
		a.Name = label
	} else if a.Name == "" {
		a.Name = name
	}
	return a, nil
}
