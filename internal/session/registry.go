package session

import (
	"sync"
	"sync/atomic"
)

// Registry maps charge point ids to their active session state and owns the
// global transaction-id counter. It is the only structure shared between
// connection workers.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*State
	nextTxID atomic.Int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*State)}
}

// GetOrCreate returns the existing session for the charge point, or creates a
// fresh one in phase Connected. Idempotent; when two workers race on the same
// new id the first creator wins and the other observes the created state.
func (r *Registry) GetOrCreate(chargePointID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[chargePointID]; ok {
		return sess
	}
	sess := &State{ChargePointID: chargePointID, Phase: PhaseConnected}
	r.sessions[chargePointID] = sess
	return sess
}

// Get returns the session for the charge point, if any.
func (r *Registry) Get(chargePointID string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[chargePointID]
	return sess, ok
}

// Remove deletes the session. A charge point reconnecting afterwards starts
// over in phase Connected.
func (r *Registry) Remove(chargePointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chargePointID)
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// NextTransactionID atomically allocates a transaction id. Ids are strictly
// increasing across all sessions for the process lifetime and never reused.
func (r *Registry) NextTransactionID() int64 {
	return r.nextTxID.Add(1)
}
