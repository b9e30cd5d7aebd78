// Package commission credits affiliates for completed orders placed by the
// users they referred, and manages admin review of those credits.
package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"affiliateplatform/internal/commission/domain"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/events"
	"affiliateplatform/internal/rateconfig"
)

// Rates resolves the effective commission rate for an affiliate.
type Rates interface {
	Resolve(ctx context.Context, affiliateID string, role rateconfig.Role) (int64, error)
}

// Service is the commission engine.
type Service struct {
	store     Store
	rates     Rates
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a new commission service. The publisher may be nil in
// tests; events are fire-and-forget side effects after commit.
func NewService(store Store, rates Rates, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, rates: rates, publisher: publisher, logger: logger}
}

// CreditCommission processes a completed order. If the buyer was referred
// by an eligible affiliate, it creates the commission record and credits
// the affiliate's balance exactly once per (affiliate, order) pair. A nil
// commission with nil error means the order earns no commission.
func (s *Service) CreditCommission(ctx context.Context, order OrderCompleted) (*domain.Commission, error) {
	if order.OrderID == "" || order.BuyerID == "" {
		return nil, errors.New("order_id and buyer_id are required")
	}
	if !order.Total.IsPositive() {
		return nil, fmt.Errorf("order %s: total must be positive", order.OrderID)
	}

	referral, err := s.store.GetReferral(ctx, order.BuyerID)
	if err != nil {
		if database.IsNotFound(err) {
			// Buyer has no referring affiliate.
			return nil, nil
		}
		return nil, fmt.Errorf("resolving referral: %w", err)
	}

	rateBps, err := s.rates.Resolve(ctx, referral.AffiliateID, referral.AffiliateRole)
	if err != nil {
		if errors.Is(err, rateconfig.ErrRoleExcluded) {
			s.logger.Info("commission skipped, role excluded",
				"affiliate_id", referral.AffiliateID,
				"order_id", order.OrderID,
			)
			return nil, nil
		}
		return nil, fmt.Errorf("resolving rate: %w", err)
	}

	// Fast path for redelivered events; the unique index catches the race.
	if existing, err := s.store.GetByAffiliateOrder(ctx, referral.AffiliateID, order.OrderID); err == nil {
		return existing, nil
	} else if !database.IsNotFound(err) {
		return nil, fmt.Errorf("checking for existing commission: %w", err)
	}

	c, err := domain.NewCommission(
		ulid.Make().String(),
		referral.AffiliateID,
		order.BuyerID,
		order.OrderID,
		order.Total,
		rateBps,
	)
	if err != nil {
		return nil, fmt.Errorf("creating commission: %w", err)
	}

	if c.Amount.IsZero() {
		// Zero rate or rounding to zero: nothing to credit.
		return nil, nil
	}

	if err := s.store.CreateWithCredit(ctx, c); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			return s.store.GetByAffiliateOrder(ctx, referral.AffiliateID, order.OrderID)
		}
		return nil, fmt.Errorf("crediting commission: %w", err)
	}

	s.publish(ctx, events.EventCommissionCredited, c.ID, CommissionCreditedEvent{
		CommissionID:   c.ID,
		AffiliateID:    c.AffiliateID,
		ReferredUserID: c.ReferredUserID,
		OrderID:        c.OrderID,
		Amount:         c.Amount,
		RateBps:        c.RateBps,
	})

	s.logger.Info("commission credited",
		"commission_id", c.ID,
		"affiliate_id", c.AffiliateID,
		"order_id", c.OrderID,
		"amount", c.Amount.AmountMinor,
		"rate_bps", c.RateBps,
	)
	return c, nil
}

// HandleOrderCompleted is the event-bus entrypoint for order completions.
func (s *Service) HandleOrderCompleted(ctx context.Context, event *events.Event) error {
	var order OrderCompleted
	if err := event.DecodeData(&order); err != nil {
		return fmt.Errorf("decoding order.completed event: %w", err)
	}
	_, err := s.CreditCommission(ctx, order)
	return err
}

// UpdateStatus applies an admin status transition. Cancelling posts the
// compensating balance reversal in the same transaction as the status
// change.
func (s *Service) UpdateStatus(ctx context.Context, id string, target domain.Status, adminID string) (*domain.Commission, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := c.Status

	var eventType string
	switch target {
	case domain.StatusApproved:
		if err := c.Approve(); err != nil {
			return nil, err
		}
		eventType = events.EventCommissionApproved
	case domain.StatusPaid:
		if err := c.MarkPaid(); err != nil {
			return nil, err
		}
		eventType = events.EventCommissionPaid
	case domain.StatusCancelled:
		if err := c.Cancel(); err != nil {
			return nil, err
		}
		eventType = events.EventCommissionCancelled
	default:
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, target)
	}

	if target == domain.StatusCancelled {
		err = s.store.CancelWithReversal(ctx, c, previous)
	} else {
		err = s.store.UpdateStatus(ctx, c, previous)
	}
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("%w: commission changed concurrently", domain.ErrInvalidTransition)
		}
		return nil, err
	}

	s.publish(ctx, eventType, c.ID, CommissionStatusEvent{
		CommissionID: c.ID,
		AffiliateID:  c.AffiliateID,
		Status:       c.Status,
		Amount:       c.Amount,
		ChangedBy:    adminID,
	})

	s.logger.Info("commission status updated",
		"commission_id", c.ID,
		"from", previous,
		"to", c.Status,
		"changed_by", adminID,
	)
	return c, nil
}

// Get retrieves a commission.
func (s *Service) Get(ctx context.Context, id string) (*domain.Commission, error) {
	return s.store.Get(ctx, id)
}

// ListByAffiliate lists an affiliate's commissions.
func (s *Service) ListByAffiliate(ctx context.Context, affiliateID string, limit, offset int) ([]*domain.Commission, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return s.store.ListByAffiliate(ctx, affiliateID, limit, offset)
}

// RegisterReferral links a referred user to the affiliate who recruited
// them. A user can only ever be referred once.
func (s *Service) RegisterReferral(ctx context.Context, affiliateID, referredUserID string, role rateconfig.Role) (*domain.Referral, error) {
	r, err := domain.NewReferral(affiliateID, referredUserID, role)
	if err != nil {
		return nil, err
	}
	if err := s.store.RegisterReferral(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("referral registered",
		"affiliate_id", affiliateID,
		"referred_user_id", referredUserID,
	)
	return r, nil
}

func (s *Service) publish(ctx context.Context, eventType, aggregateID string, data interface{}) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(eventType, "commission", aggregateID, data)
	if err != nil {
		s.logger.Error("failed to build event", "type", eventType, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "type", eventType, "error", err)
	}
}
