package action

import (
	"fmt"
	"sync"
)

// Registry maps action type strings to their handlers.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Panics on duplicate type to surface
// misconfiguration early.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Type()]; exists {
		panic(fmt.Sprintf("action registry: duplicate type %q", h.Type()))
	}
	r.handlers[h.Type()] = h
}

// Get returns the handler for the given type.
func (r *Registry) Get(actionType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for action type %q", actionType)
	}
	return h, nil
}

// Types returns all registered action type strings.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}
