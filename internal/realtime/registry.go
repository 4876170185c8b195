package realtime

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the set of live connections of this process.
// Iteration goes through Snapshot, so removals during a broadcast never
// disturb the pass in flight.
type Registry struct {
	mu    sync.RWMutex
	index map[*Conn]struct{}
	order []*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[*Conn]struct{})}
}

// Insert adds c. It reports false if c was already registered.
func (r *Registry) Insert(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[c]; ok {
		return false
	}
	r.index[c] = struct{}{}
	r.order = append(r.order, c)
	return true
}

// Remove deletes c. It reports false if c was not registered.
func (r *Registry) Remove(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[c]; !ok {
		return false
	}
	delete(r.index, c)
	r.order = lo.Without(r.order, c)
	return true
}

// Snapshot returns the registered connections in registration order.
// The slice is a copy owned by the caller.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}
