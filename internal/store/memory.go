package store

import (
	"context"
	"sync"

	"modwatch/pkg/interfaces"
)

type tenantState struct {
	prefix     string
	hasPrefix  bool
	caching    int
	hasCaching bool
}

// MemoryStateStore implements interfaces.TenantStateStore in process memory.
// Suitable for single-node deployments; state resets on restart.
type MemoryStateStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{tenants: make(map[string]*tenantState)}
}

func (s *MemoryStateStore) Prefix(ctx context.Context, tenantID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tenants[tenantID]
	if !ok || !st.hasPrefix {
		return "", interfaces.ErrNotFound
	}
	return st.prefix, nil
}

func (s *MemoryStateStore) SetPrefix(ctx context.Context, tenantID, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(tenantID)
	st.prefix = prefix
	st.hasPrefix = true
	return nil
}

func (s *MemoryStateStore) CachingSize(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tenants[tenantID]
	if !ok || !st.hasCaching {
		return 0, interfaces.ErrNotFound
	}
	return st.caching, nil
}

func (s *MemoryStateStore) SetCachingSize(ctx context.Context, tenantID string, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(tenantID)
	st.caching = size
	st.hasCaching = true
	return nil
}

func (s *MemoryStateStore) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, tenantID)
	return nil
}

func (s *MemoryStateStore) Close() error {
	return nil
}

// stateFor must be called with the write lock held.
func (s *MemoryStateStore) stateFor(tenantID string) *tenantState {
	st, ok := s.tenants[tenantID]
	if !ok {
		st = &tenantState{}
		s.tenants[tenantID] = st
	}
	return st
}
