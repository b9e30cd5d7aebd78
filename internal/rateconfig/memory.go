package rateconfig

import (
	"context"
	"sync"

	"affiliateplatform/internal/common/database"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	config *RateConfig
	rates  map[string]*UserRate
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rates: make(map[string]*UserRate)}
}

// GetConfig returns the stored config or database.ErrNotFound.
func (s *MemoryStore) GetConfig(ctx context.Context) (*RateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, database.ErrNotFound
	}
	cfg := *s.config
	cfg.ExcludedRoles = append([]Role(nil), s.config.ExcludedRoles...)
	return &cfg, nil
}

// SaveConfig stores the config.
func (s *MemoryStore) SaveConfig(ctx context.Context, cfg *RateConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cfg
	copied.ExcludedRoles = append([]Role(nil), cfg.ExcludedRoles...)
	s.config = &copied
	return nil
}

// GetUserRate returns a per-user override or database.ErrNotFound.
func (s *MemoryStore) GetUserRate(ctx context.Context, userID string) (*UserRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *rate
	return &copied, nil
}

// UpsertUserRate stores a per-user override.
func (s *MemoryStore) UpsertUserRate(ctx context.Context, rate *UserRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rate
	s.rates[rate.UserID] = &copied
	return nil
}

// DeleteUserRate removes a per-user override.
func (s *MemoryStore) DeleteUserRate(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rates, userID)
	return nil
}
