package state

import "sync"

// Registry maps session identifiers to their live state, creating entries
// lazily on first access. The registry lock only guards the map; each
// SessionState carries its own lock so unrelated sessions never contend.
type Registry struct {
	mu     sync.Mutex
	states map[string]*SessionState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*SessionState)}
}

// GetOrCreate returns the unique state for a session, creating it on first
// access. Concurrent first access yields exactly one surviving instance.
func (r *Registry) GetOrCreate(sessionID string) *SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[sessionID]
	if !ok {
		st = NewSessionState()
		r.states[sessionID] = st
	}
	return st
}

// Len reports how many sessions currently hold live state.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
