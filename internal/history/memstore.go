package history

import (
	"context"
	"sync"
)

// MemoryStore keeps revisions in process memory and counts saves. It backs
// scratch sessions where nothing should outlive the process.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string][]Revision
	saves map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Revision), saves: make(map[string]int)}
}

func (m *MemoryStore) LoadRevisions(_ context.Context, key string) ([]Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Revision(nil), m.data[key]...), nil
}

func (m *MemoryStore) SaveRevisions(_ context.Context, key string, revisions []Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]Revision(nil), revisions...)
	m.saves[key]++
	return nil
}

// Saves reports how many times key was written.
func (m *MemoryStore) Saves(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[key]
}
