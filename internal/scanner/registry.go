package scanner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/buemura/rook/pkg/types"
)

// Registry manages stage adapters by stage name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.Stage]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[types.Stage]Adapter)}
}

// Register adds an adapter, replacing any previous one for the same stage.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get retrieves an adapter by stage.
func (r *Registry) Get(stage types.Stage) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[stage]
	if !ok {
		return nil, fmt.Errorf("adapter for stage %q not found", stage)
	}
	return a, nil
}

// All returns all registered adapters sorted by stage name.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}
