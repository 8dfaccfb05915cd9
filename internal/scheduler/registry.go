package scheduler

import (
	"slices"
	"sync"
)

// Registry is the set of campaign ids that currently own a running loop.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	running map[int64]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{running: make(map[int64]struct{})}
}

// TryAcquire registers id and reports true, or reports false when id is
// already registered.
func (r *Registry) TryAcquire(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[id]; ok {
		return false
	}
	r.running[id] = struct{}{}
	return true
}

// Release removes id.
func (r *Registry) Release(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, id)
}

// IsRunning reports whether id is registered.
func (r *Registry) IsRunning(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}

// Running returns the registered ids in ascending order.
func (r *Registry) Running() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}
