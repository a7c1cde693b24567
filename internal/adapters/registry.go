// Registry manages adapter registration and lookup.
//
// DESIGN: Thread-safe map of Family -> Adapter. Every family produced by
// Classify has a built-in adapter registered at construction, so lookups
// after classification always succeed unless an adapter was replaced.
package adapters

import (
	"fmt"
	"sync"
)

// Registry manages adapter registration.
type Registry struct {
	adapters map[Family]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates a new adapter registry with all built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[Family]Adapter),
	}

	// Text families
	r.Register(NewClaudeAdapter())
	r.Register(NewLlamaAdapter())
	r.Register(NewTitanAdapter())
	r.Register(NewGenericCompletionAdapter())

	// Image families
	r.Register(NewStabilityAdapter())
	r.Register(NewCanvasAdapter())
	r.Register(NewGenericImageAdapter())

	return r
}

// Register adds an adapter to the registry, replacing any adapter of the same family.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Family()] = adapter
}

// Get returns an adapter by family.
func (r *Registry) Get(family Family) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[family]
}

// Text classifies modelID in the text domain and returns its adapter.
func (r *Registry) Text(modelID string) (TextAdapter, error) {
	family := Classify(modelID, DomainText)
	a, ok := r.Get(family).(TextAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	return a, nil
}

// Image classifies modelID in the image domain and returns its adapter.
func (r *Registry) Image(modelID string) (ImageAdapter, error) {
	family := Classify(modelID, DomainImage)
	a, ok := r.Get(family).(ImageAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	return a, nil
}
