package commission

import (
	"context"
	"sync"

	"affiliateplatform/internal/commission/domain"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/ledger"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
)

// MemoryStore is an in-memory Store for tests and local development. It
// composes with the in-memory balance store so the commission write and the
// balance change stay one atomic unit.
type MemoryStore struct {
	mu          sync.Mutex
	balances    *ledger.MemoryStore
	commissions map[string]*domain.Commission
	byOrder     map[string]string // affiliateID + "\x00" + orderID -> commission ID
	referrals   map[string]*domain.Referral
}

// NewMemoryStore creates an empty in-memory commission store.
func NewMemoryStore(balances *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{
		balances:    balances,
		commissions: make(map[string]*domain.Commission),
		byOrder:     make(map[string]string),
		referrals:   make(map[string]*domain.Referral),
	}
}

func orderKey(affiliateID, orderID string) string {
	return affiliateID + "\x00" + orderID
}

// CreateWithCredit inserts the commission and credits the balance under one
// lock acquisition.
func (s *MemoryStore) CreateWithCredit(ctx context.Context, c *domain.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orderKey(c.AffiliateID, c.OrderID)
	if _, exists := s.byOrder[key]; exists {
		return database.ErrAlreadyExists
	}

	if _, err := s.balances.Apply(ctx, c.AffiliateID, func(b *ledgerdomain.Balance) error {
		return b.Credit(c.Amount)
	}); err != nil {
		return err
	}

	copied := *c
	s.commissions[c.ID] = &copied
	s.byOrder[key] = c.ID
	return nil
}

// CancelWithReversal marks the commission cancelled and reverses the credit.
func (s *MemoryStore) CancelWithReversal(ctx context.Context, c *domain.Commission, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.commissions[c.ID]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Status != expected {
		return database.ErrConflict
	}

	if _, err := s.balances.Apply(ctx, c.AffiliateID, func(b *ledgerdomain.Balance) error {
		return b.Reverse(c.Amount)
	}); err != nil {
		return err
	}

	copied := *c
	s.commissions[c.ID] = &copied
	return nil
}

// UpdateStatus persists a non-monetary status change.
func (s *MemoryStore) UpdateStatus(ctx context.Context, c *domain.Commission, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.commissions[c.ID]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Status != expected {
		return database.ErrConflict
	}

	copied := *c
	s.commissions[c.ID] = &copied
	return nil
}

// Get retrieves a commission by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commissions[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// GetByAffiliateOrder retrieves a commission by its idempotency key.
func (s *MemoryStore) GetByAffiliateOrder(ctx context.Context, affiliateID, orderID string) (*domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byOrder[orderKey(affiliateID, orderID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *s.commissions[id]
	return &copied, nil
}

// ListByAffiliate lists an affiliate's commissions.
func (s *MemoryStore) ListByAffiliate(ctx context.Context, affiliateID string, limit, offset int) ([]*domain.Commission, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*domain.Commission
	for _, c := range s.commissions {
		if c.AffiliateID == affiliateID {
			copied := *c
			all = append(all, &copied)
		}
	}

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

// RegisterReferral links a referred user to an affiliate.
func (s *MemoryStore) RegisterReferral(ctx context.Context, r *domain.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.referrals[r.ReferredUserID]; exists {
		return database.ErrAlreadyExists
	}
	copied := *r
	s.referrals[r.ReferredUserID] = &copied
	return nil
}

// GetReferral looks up who referred the given user.
func (s *MemoryStore) GetReferral(ctx context.Context, referredUserID string) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.referrals[referredUserID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *r
	return &copied, nil
}
