package idgen

import (
	"context"
	"sync"
)

// Memory is an in-process Generator for tests and tools that run without a
// database. It cannot see rows, so its counters only move forward.
type Memory struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewMemory() *Memory {
	return &Memory{last: make(map[string]int64)}
}

// SetLast positions the counter for k so the next id is n+1.
func (m *Memory) SetLast(k Kind, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[k.Entity] = n
}

func (m *Memory) Next(_ context.Context, k Kind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.last[k.Entity] + 1
	id, err := Format(k, n)
	if err != nil {
		return "", err
	}
	m.last[k.Entity] = n
	return id, nil
}
