// Package withdrawal manages withdrawal requests against reserved affiliate
// funds and the admin workflow that settles or releases them.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/events"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/rateconfig"
	"affiliateplatform/internal/withdrawal/domain"
)

// ConfigSource supplies the current platform configuration, which carries
// the withdrawal window.
type ConfigSource interface {
	Get(ctx context.Context) (*rateconfig.RateConfig, error)
}

// Service runs the withdrawal workflow.
type Service struct {
	store     Store
	config    ConfigSource
	publisher events.Publisher
	logger    *slog.Logger

	// now is swapped in tests to pin the withdrawal window.
	now func() time.Time
}

// NewService creates a new withdrawal service. The publisher may be nil in
// tests.
func NewService(store Store, config ConfigSource, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		config:    config,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Request creates a pending withdrawal and reserves the amount from the
// user's available balance. Outside the configured window it returns a
// WindowClosedError carrying the next open window. Insufficient available
// funds surface as ledger ErrInsufficientBalance.
func (s *Service) Request(ctx context.Context, userID string, amount money.Money) (*domain.Withdrawal, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading withdrawal window: %w", err)
	}

	now := s.now()
	if !rateconfig.IsOpen(now, cfg.Window) {
		start, end := rateconfig.NextWindow(now, cfg.Window)
		return nil, &WindowClosedError{NextStart: start, NextEnd: end}
	}

	w, err := domain.NewWithdrawal(ulid.Make().String(), userID, amount)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateWithReservation(ctx, w); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventWithdrawalRequested, w.ID, WithdrawalRequestedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
	})

	s.logger.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"amount", w.Amount.AmountMinor,
	)
	return w, nil
}

// Claim moves a pending withdrawal to processing under the given admin, so
// two admins do not work the same request.
func (s *Service) Claim(ctx context.Context, id, adminID string) (*domain.Withdrawal, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := w.Status

	if err := w.MarkProcessing(adminID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, w, previous); err != nil {
		return nil, mapConflict(err)
	}

	s.publish(ctx, events.EventWithdrawalProcessing, w.ID, WithdrawalDecidedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
		Status:       w.Status,
		ProcessedBy:  adminID,
	})

	s.logger.Info("withdrawal claimed", "withdrawal_id", w.ID, "admin_id", adminID)
	return w, nil
}

// Approve completes the withdrawal and settles the reserved funds.
func (s *Service) Approve(ctx context.Context, id, adminID string) (*domain.Withdrawal, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := w.Status

	if err := w.Complete(adminID); err != nil {
		return nil, err
	}
	if err := s.store.FinalizeSettle(ctx, w, previous); err != nil {
		return nil, mapConflict(err)
	}

	s.publish(ctx, events.EventWithdrawalCompleted, w.ID, WithdrawalDecidedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
		Status:       w.Status,
		ProcessedBy:  adminID,
	})

	s.logger.Info("withdrawal completed",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"amount", w.Amount.AmountMinor,
		"admin_id", adminID,
	)
	return w, nil
}

// Reject declines the withdrawal and releases the reserved funds back to the
// user's available balance. A reason is required.
func (s *Service) Reject(ctx context.Context, id, adminID, reason string) (*domain.Withdrawal, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := w.Status

	if err := w.Reject(adminID, reason); err != nil {
		return nil, err
	}
	if err := s.store.FinalizeRelease(ctx, w, previous); err != nil {
		return nil, mapConflict(err)
	}

	s.publish(ctx, events.EventWithdrawalRejected, w.ID, WithdrawalDecidedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
		Status:       w.Status,
		ProcessedBy:  adminID,
		Reason:       reason,
	})

	s.logger.Info("withdrawal rejected",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"admin_id", adminID,
		"reason", reason,
	)
	return w, nil
}

// Cancel lets the requesting user withdraw a request no admin has claimed.
// The reserved funds return to availability.
func (s *Service) Cancel(ctx context.Context, id, userID string) (*domain.Withdrawal, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := w.Status

	if err := w.Cancel(userID); err != nil {
		return nil, err
	}
	if err := s.store.FinalizeRelease(ctx, w, previous); err != nil {
		return nil, mapConflict(err)
	}

	s.publish(ctx, events.EventWithdrawalCancelled, w.ID, WithdrawalDecidedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
		Status:       w.Status,
	})

	s.logger.Info("withdrawal cancelled", "withdrawal_id", w.ID, "user_id", w.UserID)
	return w, nil
}

// Get retrieves a withdrawal.
func (s *Service) Get(ctx context.Context, id string) (*domain.Withdrawal, error) {
	return s.store.Get(ctx, id)
}

// ListByUser lists a user's withdrawals.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	return s.store.ListByUser(ctx, userID, clampLimit(limit), offset)
}

// ListByStatus lists withdrawals in a given state for the admin queue.
func (s *Service) ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	return s.store.ListByStatus(ctx, status, clampLimit(limit), offset)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// mapConflict translates an optimistic concurrency failure into the domain
// error the caller already handles for late decisions.
func mapConflict(err error) error {
	if errors.Is(err, database.ErrConflict) {
		return fmt.Errorf("%w: withdrawal changed concurrently", domain.ErrAlreadyProcessed)
	}
	return err
}

func (s *Service) publish(ctx context.Context, eventType, aggregateID string, data interface{}) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(eventType, "withdrawal", aggregateID, data)
	if err != nil {
		s.logger.Error("failed to build event", "type", eventType, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "type", eventType, "error", err)
	}
}
