// Package token owns the provider access token: where it is persisted and
// when it is reused, refreshed, or replaced by a fresh login.
package token

import (
	"context"
	"sync"

	"dropship-gateway/internal/model"
)

// Store is pure data access for provider credentials and the token pair.
// It holds no policy; Lifecycle decides what to do with what it returns.
type Store interface {
	LoadCredentials(ctx context.Context) (model.Credentials, error)
	// LoadToken returns nil, nil when no token has been persisted yet.
	LoadToken(ctx context.Context) (*model.TokenState, error)
	SaveToken(ctx context.Context, state model.TokenState) error
}

// Compile-time interface checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MemoryStore keeps credentials and token in process memory.
// Used in development and tests; tokens do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	creds model.Credentials
	token *model.TokenState
}

// NewMemoryStore creates a store seeded with creds.
func NewMemoryStore(creds model.Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

func (m *MemoryStore) LoadCredentials(_ context.Context) (model.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

func (m *MemoryStore) LoadToken(_ context.Context) (*model.TokenState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil, nil
	}
	cp := *m.token
	return &cp, nil
}

func (m *MemoryStore) SaveToken(_ context.Context, state model.TokenState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = &state
	return nil
}
