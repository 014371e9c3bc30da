package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Development and test use
// only: state does not survive a restart, which the linking flow relies
// on in real deployments.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	consumed map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		consumed: make(map[string]time.Time),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(s.ExpiresAt) {
		delete(m.sessions, sessionID)
		return nil, nil
	}

	cp := s
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, exp := range m.consumed {
		if now.After(exp) {
			delete(m.consumed, id)
		}
	}

	if _, ok := m.consumed[jti]; ok {
		return false, nil
	}
	m.consumed[jti] = now.Add(ttl)
	return true, nil
}
