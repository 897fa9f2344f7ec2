// Package session holds the in-memory registry backing the streaming
// channel. A session exists only while its transport is open: it is
// registered once on a successful initialize, looked up on every subsequent
// call, and removed exactly once (idempotently) on explicit or
// transport-detected close. Retired identifiers are never reused.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one transport-scoped execution context.
type Session struct {
	ID            string
	ClientName    string
	ClientVersion string
	CreatedAt     time.Time
	LastSeen      time.Time
}

// Registry is the process-wide session table. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	active  map[string]*Session
	retired map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active:  make(map[string]*Session),
		retired: make(map[string]struct{}),
	}
}

// Mint returns a fresh random session identifier.
func Mint() string {
	return uuid.NewString()
}

// Register adds a session. Registering an identifier that is active or was
// ever retired is an error: identifiers are single-use.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[s.ID]; ok {
		return fmt.Errorf("session %s is already registered", s.ID)
	}
	if _, ok := r.retired[s.ID]; ok {
		return fmt.Errorf("session %s was retired and cannot be reused", s.ID)
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastSeen = now
	r.active[s.ID] = s
	return nil
}

// Get returns the active session with the given id and refreshes its
// last-seen time.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[id]
	if ok {
		s.LastSeen = time.Now()
	}
	return s, ok
}

// SetClientInfo records the client identification from the initialization
// payload on an active session.
func (r *Registry) SetClientInfo(id, name, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.active[id]; ok {
		s.ClientName = name
		s.ClientVersion = version
	}
}

// Remove retires an active session. Removing an id that is not active —
// never registered, or already removed — is a no-op, so close paths from the
// explicit close and the transport-detected close cannot double-retire.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; ok {
		delete(r.active, id)
		r.retired[id] = struct{}{}
	}
}

// Retired reports whether the id was once active and has been closed.
func (r *Registry) Retired(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.retired[id]
	return ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
