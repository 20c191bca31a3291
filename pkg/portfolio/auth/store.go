package auth

import (
	"context"
	"sync"
)

// MemoryUserStore keeps accounts in memory
type MemoryUserStore struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byEmail: make(map[string]User)}
}

func (m *MemoryUserStore) CreateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return ErrUserExists
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *MemoryUserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, exists := m.byEmail[email]
	if !exists {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// MemorySessionStore keeps sessions in memory. Expiry is checked by
// Service, not by the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (m *MemorySessionStore) SaveSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.AccessToken = ""
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessionStore) GetSession(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	s, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessionStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
