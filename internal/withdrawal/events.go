package withdrawal

import (
	"fmt"
	"time"

	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/withdrawal/domain"
)

// WindowClosedError rejects a withdrawal request outside the configured
// window. The message carries the next open window so callers can show it
// to the user.
type WindowClosedError struct {
	NextStart time.Time
	NextEnd   time.Time
}

func (e *WindowClosedError) Error() string {
	return fmt.Sprintf("withdrawal window closed; next window %s to %s",
		e.NextStart.Format("2006-01-02"), e.NextEnd.Format("2006-01-02"))
}

// WithdrawalRequestedEvent is published when a request is accepted and the
// funds reserved.
type WithdrawalRequestedEvent struct {
	WithdrawalID string      `json:"withdrawal_id"`
	UserID       string      `json:"user_id"`
	Amount       money.Money `json:"amount"`
}

// WithdrawalDecidedEvent is published on every transition out of pending.
type WithdrawalDecidedEvent struct {
	WithdrawalID string        `json:"withdrawal_id"`
	UserID       string        `json:"user_id"`
	Amount       money.Money   `json:"amount"`
	Status       domain.Status `json:"status"`
	ProcessedBy  string        `json:"processed_by,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}
