package ledger

import (
	"context"
	"sync"
	"time"

	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger/domain"
)

// MemoryStore is an in-memory Store for tests and local development. A
// single mutex serializes Apply calls, giving the same check-then-act
// protection the postgres row lock provides.
type MemoryStore struct {
	mu       sync.Mutex
	currency money.Currency
	balances map[string]*domain.Balance
}

// NewMemoryStore creates an empty in-memory balance store.
func NewMemoryStore(currency money.Currency) *MemoryStore {
	return &MemoryStore{
		currency: currency,
		balances: make(map[string]*domain.Balance),
	}
}

// Get returns a copy of the user's balance, or a zero balance.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return domain.NewBalance(userID, s.currency), nil
	}
	copied := *b
	return &copied, nil
}

// Apply runs mutate under the store lock. The stored balance is only
// replaced when mutate succeeds, mirroring transactional commit-or-abort.
func (s *MemoryStore) Apply(ctx context.Context, userID string, mutate func(*domain.Balance) error) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(userID, mutate)
}

// applyLocked is shared with composing stores that already hold the lock
// through Locked.
func (s *MemoryStore) applyLocked(userID string, mutate func(*domain.Balance) error) (*domain.Balance, error) {
	current, ok := s.balances[userID]
	if !ok {
		current = domain.NewBalance(userID, s.currency)
	}

	working := *current
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()

	s.balances[userID] = &working
	result := working
	return &result, nil
}

// Locked runs fn while holding the store lock, handing it an apply function
// scoped to the critical section. Callers that need several balance changes
// to land together use this instead of repeated Apply calls.
func (s *MemoryStore) Locked(fn func(apply func(userID string, mutate func(*domain.Balance) error) (*domain.Balance, error)) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.applyLocked)
}
