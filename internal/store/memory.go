package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the state in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewState()}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.Clone()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, fn func(state *State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.Clone()
	if err := fn(working); err != nil {
		return err
	}
	m.state = working.Clone()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
