package merge

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores mergers by name, providing discovery and duplication
// safeguards. Callers can wrap this for dependency injection.
type Registry struct {
	mu      sync.RWMutex
	mergers map[string]Merger
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		mergers: make(map[string]Merger),
	}
}

// Register adds a merger by its Name(). Duplicate names return an error.
func (r *Registry) Register(merger Merger) error {
	if merger == nil {
		return fmt.Errorf("merge: merger is required")
	}
	name := merger.Name()
	if name == "" {
		return fmt.Errorf("merge: merger name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mergers[name]; exists {
		return fmt.Errorf("merge: merger %q already registered", name)
	}

	r.mergers[name] = merger
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(merger Merger) {
	if err := r.Register(merger); err != nil {
		panic(err)
	}
}

// Get retrieves a merger by name.
func (r *Registry) Get(name string) (Merger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merger, ok := r.mergers[name]
	if !ok {
		return nil, fmt.Errorf("merge: merger %q not found", name)
	}
	return merger, nil
}

// List returns the registered merger names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.mergers))
	for name := range r.mergers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
