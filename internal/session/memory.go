package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	values  map[string]string
	touched time.Time
}

// MemoryStore keeps sessions in process memory. Reads and writes both count as
// activity; sessions idle for longer than ttl are dropped on access and by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) expired(e *memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.touched) > m.ttl
}

func (m *MemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok || m.expired(e) {
		return "", false, nil
	}
	e.touched = m.now()
	v, ok := e.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok || m.expired(e) {
		e = &memoryEntry{values: make(map[string]string)}
		m.sessions[sessionID] = e
	}
	e.values[key] = value
	e.touched = m.now()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(e.values, k)
	}
	if len(e.values) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) Close() {}
