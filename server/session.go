package server

import (
	"sort"
	"sync"
	"time"
)

// Session describes one transfer in progress. It is created by the handler
// that owns the transfer and is never mutated after creation.
type Session struct {
	ID        string // proto + remote address
	Proto     string
	Remote    string
	Size      uint64
	CreatedAt time.Time
}

// NewSession creates a session for a transfer of size bytes to remote.
func NewSession(proto, remote string, size uint64) *Session {
	return &Session{
		ID:        proto + "/" + remote,
		Proto:     proto,
		Remote:    remote,
		Size:      size,
		CreatedAt: time.Now(),
	}
}

// SessionStore is a thread-safe registry of active sessions. It only serves
// logging and inspection; handlers never coordinate through it.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers s. A session with the same ID is overwritten, which
// happens when a client repeats a Request from the same port.
func (ss *SessionStore) Create(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.ID] = s
}

// Delete removes s if it is still the registered session for its ID.
func (ss *SessionStore) Delete(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.sessions[s.ID] == s {
		delete(ss.sessions, s.ID)
	}
}

// Len returns the number of active sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Snapshot returns the active sessions ordered by creation time.
func (ss *SessionStore) Snapshot() []*Session {
	ss.mu.RLock()
	out := make([]*Session, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		out = append(out, s)
	}
	ss.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
