package llm

import (
	"fmt"
	"sync"

	"github.com/koopa0/briefing/internal/chain"
)

// Registry resolves a request's backend to a ChatModel. Registration
// happens at startup; lookups are concurrent.
type Registry struct {
	mu     sync.RWMutex
	models map[chain.Backend]ChatModel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{models: map[chain.Backend]ChatModel{}}
}

// Register binds a backend to a model, replacing any previous binding.
func (r *Registry) Register(backend chain.Backend, model ChatModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[backend] = model
}

// Get returns the model bound to the backend.
func (r *Registry) Get(backend chain.Backend) (ChatModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, ok := r.models[backend]
	if !ok {
		return nil, fmt.Errorf("no model registered for backend %s/%s", backend.Provider, backend.Name)
	}
	return model, nil
}
