// Package core holds internal wiring helpers shared by the public API
// surface.
package core

import "sync"

// Registry collects handlers keyed by topic and returns stable snapshots
// for dispatch. It is the backing store for cache event subscriptions:
// registration is rare, dispatch is hot, so reads take a shared lock and
// return a copy that can be iterated without holding it.
type Registry[K comparable, H any] struct {
	mu       sync.RWMutex
	handlers map[K][]H
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable, H any]() *Registry[K, H] {
	return &Registry[K, H]{handlers: make(map[K][]H)}
}

// Add appends a handler for the given topic. Handlers run in registration
// order.
func (r *Registry[K, H]) Add(topic K, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = append(r.handlers[topic], h)
}

// Get returns a snapshot of the handlers registered for topic.
func (r *Registry[K, H]) Get(topic K) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := r.handlers[topic]
	if len(hs) == 0 {
		return nil
	}
	out := make([]H, len(hs))
	copy(out, hs)
	return out
}
