package cache

import (
	"context"
	"sync"

	"QuantSentinel/internal/model"
)

type key struct {
	symbol string
	kind   model.Kind
}

// MemoryStore keeps snapshots in process.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[key]*model.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[key]*model.Snapshot)}
}

func (m *MemoryStore) Load(_ context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snaps[key{symbol, kind}], nil
}

func (m *MemoryStore) Save(_ context.Context, snap *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[key{snap.Symbol, snap.Kind}] = snap
	return nil
}
