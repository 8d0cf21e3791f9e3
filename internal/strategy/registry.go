package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownGenerator is returned by Lookup for a name nobody registered.
var ErrUnknownGenerator = errors.New("unknown signal generator")

// Registry maps generator names to implementations.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]SignalGenerator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]SignalGenerator)}
}

// Register adds a generator. Returns an error if the name is empty or
// already registered.
func (r *Registry) Register(name string, gen SignalGenerator) error {
	if name == "" {
		return errors.New("strategy: empty generator name")
	}
	if gen == nil {
		return fmt.Errorf("strategy: nil generator %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.generators[name]; exists {
		return fmt.Errorf("strategy: generator %q already registered", name)
	}
	r.generators[name] = gen
	return nil
}

// Lookup returns the generator registered under name.
func (r *Registry) Lookup(name string) (SignalGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("strategy: %q: %w", name, ErrUnknownGenerator)
	}
	return gen, nil
}

// Names lists registered generators in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for n := range r.generators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
