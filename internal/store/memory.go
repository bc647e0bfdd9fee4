package store

import (
	"context"
	"sync"
)

// Memory keeps records in process.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]Record
	order []string
}

func NewMemory() *Memory {
	return &Memory{byID: map[string]Record{}}
}

func (m *Memory) Save(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	r.Fields = r.Fields.Clone()
	m.byID[r.ID] = r
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	r.Fields = r.Fields.Clone()
	return r, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		r := m.byID[m.order[i]]
		r.Fields = r.Fields.Clone()
		out = append(out, r)
	}
	return out, nil
}
