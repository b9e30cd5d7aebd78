// Package ledger exposes the balance ledger: atomic credit, reserve,
// settle, release and reverse operations over per-user balances.
package ledger

import (
	"context"
	"errors"
	"log/slog"

	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger/domain"
)

// Service provides balance ledger operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new ledger service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// GetBalance returns a snapshot of the user's balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	return s.store.Get(ctx, userID)
}

// Credit adds earned commission to a user's balance.
func (s *Service) Credit(ctx context.Context, userID string, amount money.Money) (*domain.Balance, error) {
	b, err := s.apply(ctx, "credit", userID, amount, func(b *domain.Balance) error {
		return b.Credit(amount)
	})
	return b, err
}

// Reserve moves funds from available to pending-withdrawal.
func (s *Service) Reserve(ctx context.Context, userID string, amount money.Money) (*domain.Balance, error) {
	return s.apply(ctx, "reserve", userID, amount, func(b *domain.Balance) error {
		return b.Reserve(amount)
	})
}

// Settle finalizes reserved funds as withdrawn.
func (s *Service) Settle(ctx context.Context, userID string, amount money.Money) (*domain.Balance, error) {
	return s.apply(ctx, "settle", userID, amount, func(b *domain.Balance) error {
		return b.Settle(amount)
	})
}

// Release returns reserved funds to availability.
func (s *Service) Release(ctx context.Context, userID string, amount money.Money) (*domain.Balance, error) {
	return s.apply(ctx, "release", userID, amount, func(b *domain.Balance) error {
		return b.Release(amount)
	})
}

// Reverse backs out a cancelled commission credit.
func (s *Service) Reverse(ctx context.Context, userID string, amount money.Money) (*domain.Balance, error) {
	return s.apply(ctx, "reverse", userID, amount, func(b *domain.Balance) error {
		return b.Reverse(amount)
	})
}

func (s *Service) apply(ctx context.Context, op, userID string, amount money.Money, mutate func(*domain.Balance) error) (*domain.Balance, error) {
	b, err := s.store.Apply(ctx, userID, mutate)
	if err != nil {
		if errors.Is(err, domain.ErrNegativeResult) || errors.Is(err, domain.ErrConservationViolated) {
			// Workflow-layer bug, not a user error. The transaction has
			// already been aborted; make sure it is loud in the logs.
			s.logger.Error("balance invariant violation",
				"op", op,
				"user_id", userID,
				"amount", amount.AmountMinor,
				"error", err,
			)
		}
		return nil, err
	}

	s.logger.Info("balance updated",
		"op", op,
		"user_id", userID,
		"amount", amount.AmountMinor,
		"available", b.Available.AmountMinor,
		"pending_withdrawal", b.PendingWithdrawal.AmountMinor,
	)
	return b, nil
}
