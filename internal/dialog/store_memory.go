package dialog

import (
	"context"
	"sync"

	"github.com/opensplit/splitbot/internal/expense"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs an in-memory Store. Sessions do not survive a
// restart; use the Postgres store when that matters.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*Session)}
}

func (m *memoryStore) Get(_ context.Context, chatID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[chatID]
	if !ok {
		return nil, nil
	}
	return copySession(sess), nil
}

func (m *memoryStore) Save(_ context.Context, chatID int64, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = copySession(sess)
	return nil
}

func (m *memoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

// copySession detaches the stored value from the caller's mutations.
func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Receivers = append([]expense.UserRef(nil), s.Receivers...)
	return &clone
}
