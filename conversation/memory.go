package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memSession struct {
	messages  []Message
	current   string
	pending   *Pending
	createdAt time.Time
}

// MemoryStore keeps everything in process memory. History is lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*memSession
	maxMessages int
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memSession), maxMessages: maxMessages}
}

func (m *MemoryStore) session(id string) *memSession {
	s, ok := m.sessions[id]
	if !ok {
		s = &memSession{createdAt: time.Now().UTC()}
		m.sessions[id] = s
	}
	return s
}

func (m *MemoryStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.session(id)
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) SessionExists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok, nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, id, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(id)
	s.messages = append(s.messages, Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if m.maxMessages > 0 && len(s.messages) > m.maxMessages {
		s.messages = append([]Message(nil), s.messages[len(s.messages)-m.maxMessages:]...)
	}
	return nil
}

func (m *MemoryStore) Messages(ctx context.Context, id string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message(nil), msgs...), nil
}

func (m *MemoryStore) ClearMessages(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.messages = nil
	}
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetCurrentDestination(ctx context.Context, id, destination string) error {
	m.mu.Lock()
	m.session(id).current = destination
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CurrentDestination(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.current, nil
	}
	return "", nil
}

func (m *MemoryStore) SetPending(ctx context.Context, id string, p Pending) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.session(id).pending = &p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Pending(ctx context.Context, id string) (*Pending, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || s.pending == nil {
		return nil, nil
	}
	p := *s.pending
	return &p, nil
}

func (m *MemoryStore) ClearPending(ctx context.Context, id string) error {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.pending = nil
	}
	m.mu.Unlock()
	return nil
}

// Sessions lists session ids, oldest first.
func (m *MemoryStore) Sessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.sessions[ids[i]], m.sessions[ids[j]]
		if a.createdAt.Equal(b.createdAt) {
			return ids[i] < ids[j]
		}
		return a.createdAt.Before(b.createdAt)
	})
	return ids, nil
}
