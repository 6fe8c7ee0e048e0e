package session

import (
	"sync"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
)

// MemoryStore is a thread-safe in-memory session store. The store mutex
// guards only the session map; per-conversation ordering is the session's
// own concern, so exchanges on different keys never block each other.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for key, creating an empty one if absent.
func (m *MemoryStore) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		s = &Session{Key: key}
		m.sessions[key] = s
	}
	return s
}

// Get retrieves a session by key.
func (m *MemoryStore) Get(key string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Append adds a turn to the session's history, creating it if absent.
func (m *MemoryStore) Append(key string, turn chat.Turn) {
	m.GetOrCreate(key).Append(turn)
}

// Delete removes a session from the store.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, key)
	return nil
}

// List returns all live sessions.
func (m *MemoryStore) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s)
	}
	return result
}
