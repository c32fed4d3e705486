package store

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/researcher/internal/knowledge"
)

// Memory keeps agents in process memory. It is meant for development and tests.
type Memory struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewMemory() *Memory {
	return &Memory{agents: make(map[string]Agent)}
}

func (m *Memory) Create(_ context.Context, name string, files []knowledge.Record) (Agent, error) {
	a := newAgent(name, files)
	m.mu.Lock()
	m.agents[a.ID] = a
	m.mu.Unlock()
	return a.clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (Agent, error) {
	if err := ValidateID(id); err != nil {
		return Agent{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a.clone(), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.agents, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendFiles(_ context.Context, id string, records []knowledge.Record, expectedRevision int64) error {
	return m.update(id, expectedRevision, func(a *Agent) {
		a.Files = append(a.Files, records...)
	})
}

func (m *Memory) AppendWebsites(_ context.Context, id string, records []knowledge.Record, expectedRevision int64) error {
	return m.update(id, expectedRevision, func(a *Agent) {
		a.Websites = append(a.Websites, records...)
	})
}

func (m *Memory) AppendMessage(_ context.Context, id string, text string) error {
	return m.update(id, -1, func(a *Agent) {
		a.Messages = append(a.Messages, text)
	})
}

func (m *Memory) Close() error { return nil }

// update applies fn under the write lock. A negative expectedRevision skips the
// check and leaves the revision untouched, since only knowledge commits count.
func (m *Memory) update(id string, expectedRevision int64, fn func(*Agent)) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return ErrNotFound
	}
	if expectedRevision >= 0 && a.Revision != expectedRevision {
		return ErrConflict
	}
	a = a.clone()
	fn(&a)
	if expectedRevision >= 0 {
		a.Revision++
	}
	m.agents[id] = a
	return nil
}
