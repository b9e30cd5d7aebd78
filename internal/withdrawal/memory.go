package withdrawal

import (
	"context"
	"sort"
	"sync"

	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/ledger"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
	"affiliateplatform/internal/withdrawal/domain"
)

// MemoryStore is an in-memory Store for tests and local development. It
// composes with the in-memory balance store so the withdrawal write and the
// balance change stay one atomic unit.
type MemoryStore struct {
	mu          sync.Mutex
	balances    *ledger.MemoryStore
	withdrawals map[string]*domain.Withdrawal
}

// NewMemoryStore creates an empty in-memory withdrawal store.
func NewMemoryStore(balances *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{
		balances:    balances,
		withdrawals: make(map[string]*domain.Withdrawal),
	}
}

// CreateWithReservation reserves the funds and inserts the withdrawal under
// one lock acquisition.
func (s *MemoryStore) CreateWithReservation(ctx context.Context, w *domain.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.balances.Apply(ctx, w.UserID, func(b *ledgerdomain.Balance) error {
		return b.Reserve(w.Amount)
	}); err != nil {
		return err
	}

	copied := *w
	s.withdrawals[w.ID] = &copied
	return nil
}

// FinalizeSettle marks the withdrawal completed and settles the reservation.
func (s *MemoryStore) FinalizeSettle(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error {
	return s.finalize(ctx, w, expected, func(b *ledgerdomain.Balance) error {
		return b.Settle(w.Amount)
	})
}

// FinalizeRelease marks the withdrawal rejected or cancelled and releases the
// reservation back to availability.
func (s *MemoryStore) FinalizeRelease(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error {
	return s.finalize(ctx, w, expected, func(b *ledgerdomain.Balance) error {
		return b.Release(w.Amount)
	})
}

func (s *MemoryStore) finalize(ctx context.Context, w *domain.Withdrawal, expected domain.Status, mutate func(*ledgerdomain.Balance) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.withdrawals[w.ID]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Status != expected {
		return database.ErrConflict
	}

	if _, err := s.balances.Apply(ctx, w.UserID, mutate); err != nil {
		return err
	}

	copied := *w
	s.withdrawals[w.ID] = &copied
	return nil
}

// UpdateStatus persists the processing claim.
func (s *MemoryStore) UpdateStatus(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.withdrawals[w.ID]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Status != expected {
		return database.ErrConflict
	}

	copied := *w
	s.withdrawals[w.ID] = &copied
	return nil
}

// Get retrieves a withdrawal by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

// ListByUser lists a user's withdrawals, newest first.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	return s.list(func(w *domain.Withdrawal) bool { return w.UserID == userID }, limit, offset)
}

// ListByStatus lists withdrawals in a given state, newest first.
func (s *MemoryStore) ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	return s.list(func(w *domain.Withdrawal) bool { return w.Status == status }, limit, offset)
}

func (s *MemoryStore) list(match func(*domain.Withdrawal) bool, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*domain.Withdrawal
	for _, w := range s.withdrawals {
		if match(w) {
			copied := *w
			all = append(all, &copied)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].RequestedAt.After(all[j].RequestedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}
