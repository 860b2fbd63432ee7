package asr

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps backend names to Transcriber implementations so the active
// backend can be chosen from configuration.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Transcriber
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Transcriber)}
}

// Register adds or replaces a backend under name.
func (r *Registry) Register(name string, t Transcriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = t
}

// Select returns the backend registered under name.
func (r *Registry) Select(name string) (Transcriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownBackend, name, r.namesLocked())
	}
	return t, nil
}

// Names lists registered backends in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
