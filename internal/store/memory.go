package store

import (
	"context"
	"sync"

	"github.com/mockmate/interviewd/internal/domain"
)

// Memory is an in-memory Repository. Sessions live for the process lifetime;
// there is no eviction.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *domain.Session
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*entry),
	}
}

// WithSession implements Repository. The per-session lock is held for the
// whole of fn, outbound model call included: at most one in-flight turn per
// session, while distinct sessions proceed concurrently.
func (m *Memory) WithSession(ctx context.Context, id string, fn func(*domain.Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{session: domain.NewSession(id)}
		m.sessions[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// Get implements Repository.
func (m *Memory) Get(ctx context.Context, id string) (*domain.Session, bool) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), true
}

// Len implements Repository.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
