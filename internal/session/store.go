package session

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions between requests.
type Store interface {
	// Get returns the session with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Save writes s, resetting its expiry.
	Save(ctx context.Context, s *Session) error
	// Delete removes the session with id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore keeps sessions in process memory. Entries idle for longer than
// the TTL are dropped on access and swept on every Save.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session *Session
	expires time.Time
}

// NewMemoryStore creates a MemoryStore. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return e.session, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.ttl > 0 {
		for id, e := range m.sessions {
			if now.After(e.expires) {
				delete(m.sessions, id)
			}
		}
	}
	m.sessions[s.ID] = memoryEntry{session: s, expires: now.Add(m.ttl)}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
