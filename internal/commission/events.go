package commission

import (
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/commission/domain"
)

// OrderCompleted is the payload of an order.completed event from the order
// subsystem. Delivery is at-least-once; the (affiliate, order) idempotency
// key absorbs duplicates.
type OrderCompleted struct {
	OrderID string      `json:"order_id"`
	BuyerID string      `json:"buyer_id"`
	Total   money.Money `json:"total"`
}

// CommissionCreditedEvent is published after a commission is created and
// the affiliate's balance credited.
type CommissionCreditedEvent struct {
	CommissionID   string      `json:"commission_id"`
	AffiliateID    string      `json:"affiliate_id"`
	ReferredUserID string      `json:"referred_user_id"`
	OrderID        string      `json:"order_id"`
	Amount         money.Money `json:"amount"`
	RateBps        int64       `json:"rate_bps"`
}

// CommissionStatusEvent is published on admin status transitions.
type CommissionStatusEvent struct {
	CommissionID string        `json:"commission_id"`
	AffiliateID  string        `json:"affiliate_id"`
	Status       domain.Status `json:"status"`
	Amount       money.Money   `json:"amount"`
	ChangedBy    string        `json:"changed_by,omitempty"`
}
