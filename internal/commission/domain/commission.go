// Package domain holds the commission record and its status transitions.
package domain

import (
	"errors"
	"fmt"
	"time"

	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/rateconfig"
)

// Status is the commission lifecycle state. It only ever advances by admin
// action; the monetary fields are fixed at creation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusPaid, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown commission status %q", s)
}

// ErrInvalidTransition rejects a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid commission status transition")

// Commission is a computed monetary credit tied to one order and one
// affiliate. At most one commission exists per (affiliate, order) pair.
type Commission struct {
	ID             string      `json:"id"`
	AffiliateID    string      `json:"affiliate_id"`
	ReferredUserID string      `json:"referred_user_id"`
	OrderID        string      `json:"order_id"`
	Amount         money.Money `json:"amount"`
	RateBps        int64       `json:"rate_bps"`
	Status         Status      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewCommission computes the commission amount from the order total and the
// rate in force at creation time. The amount is never recomputed afterwards.
func NewCommission(id, affiliateID, referredUserID, orderID string, orderTotal money.Money, rateBps int64) (*Commission, error) {
	if id == "" {
		return nil, errors.New("id is required")
	}
	if affiliateID == "" {
		return nil, errors.New("affiliate_id is required")
	}
	if orderID == "" {
		return nil, errors.New("order_id is required")
	}
	if !orderTotal.IsPositive() {
		return nil, errors.New("order total must be positive")
	}
	if rateBps < rateconfig.MinRateBps || rateBps > rateconfig.MaxRateBps {
		return nil, rateconfig.ErrInvalidRate
	}

	now := time.Now().UTC()
	return &Commission{
		ID:             id,
		AffiliateID:    affiliateID,
		ReferredUserID: referredUserID,
		OrderID:        orderID,
		Amount:         orderTotal.Percentage(rateBps),
		RateBps:        rateBps,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Approve advances pending to approved.
func (c *Commission) Approve() error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: %s -> approved", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusApproved
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid advances approved to paid.
func (c *Commission) MarkPaid() error {
	if c.Status != StatusApproved {
		return fmt.Errorf("%w: %s -> paid", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusPaid
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel voids a pending or approved commission. The ledger credit is
// backed out by a compensating reversal, never by editing history.
func (c *Commission) Cancel() error {
	if c.Status != StatusPending && c.Status != StatusApproved {
		return fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusCancelled
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (c *Commission) IsTerminal() bool {
	return c.Status == StatusPaid || c.Status == StatusCancelled
}

// Referral links a referred user to the affiliate who recruited them.
type Referral struct {
	ReferredUserID string          `json:"referred_user_id"`
	AffiliateID    string          `json:"affiliate_id"`
	AffiliateRole  rateconfig.Role `json:"affiliate_role"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewReferral validates and creates a referral link.
func NewReferral(affiliateID, referredUserID string, role rateconfig.Role) (*Referral, error) {
	if affiliateID == "" {
		return nil, errors.New("affiliate_id is required")
	}
	if referredUserID == "" {
		return nil, errors.New("referred_user_id is required")
	}
	if affiliateID == referredUserID {
		return nil, errors.New("affiliate cannot refer themselves")
	}
	return &Referral{
		ReferredUserID: referredUserID,
		AffiliateID:    affiliateID,
		AffiliateRole:  role,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
