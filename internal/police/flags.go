package police

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry is the set of users currently in policing mode. It lives for the
// process only.
type Registry struct {
	mu    sync.RWMutex
	users map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{users: map[uuid.UUID]struct{}{}}
}

func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// On enables policing for id and reports whether the state changed.
func (r *Registry) On(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; ok {
		return false
	}
	r.users[id] = struct{}{}
	return true
}

// Off disables policing for id and reports whether the state changed.
func (r *Registry) Off(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false
	}
	delete(r.users, id)
	return true
}

// Toggle flips the state for id and returns the new state.
func (r *Registry) Toggle(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; ok {
		delete(r.users, id)
		return false
	}
	r.users[id] = struct{}{}
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Snapshot returns the policing users sorted by their string form.
func (r *Registry) Snapshot() []uuid.UUID {
	r.mu.RLock()
	out := make([]uuid.UUID, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
