// Package domain holds the withdrawal record and its state machine.
package domain

import (
	"errors"
	"fmt"
	"time"

	"affiliateplatform/internal/common/money"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
)

// Status is the withdrawal state. pending -> processing is the only
// non-terminal transition; completed, rejected and cancelled are final.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusRejected, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown withdrawal status %q", s)
}

// Sentinel errors for withdrawal transitions.
var (
	// ErrAlreadyProcessed rejects a decision on a withdrawal that has
	// already reached a terminal state or been claimed.
	ErrAlreadyProcessed = errors.New("withdrawal already processed")

	// ErrNotOwner rejects a cancellation by someone other than the
	// requesting user.
	ErrNotOwner = errors.New("withdrawal does not belong to user")

	// ErrReasonRequired rejects a rejection without a stated reason.
	ErrReasonRequired = errors.New("rejection reason is required")
)

// Withdrawal is a request to pay out reserved funds. The amount is fixed at
// creation; once terminal, the record is immutable.
type Withdrawal struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Amount          money.Money `json:"amount"`
	Status          Status      `json:"status"`
	RequestedAt     time.Time   `json:"requested_at"`
	ProcessedAt     *time.Time  `json:"processed_at,omitempty"`
	ProcessedBy     string      `json:"processed_by,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewWithdrawal creates a pending withdrawal request.
func NewWithdrawal(id, userID string, amount money.Money) (*Withdrawal, error) {
	if id == "" {
		return nil, errors.New("id is required")
	}
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if !amount.IsPositive() {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Withdrawal{
		ID:          id,
		UserID:      userID,
		Amount:      amount,
		Status:      StatusPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}, nil
}

// MarkProcessing claims a pending withdrawal for an admin.
func (w *Withdrawal) MarkProcessing(adminID string) error {
	if w.Status != StatusPending {
		return fmt.Errorf("%w: status %s", ErrAlreadyProcessed, w.Status)
	}
	w.Status = StatusProcessing
	w.ProcessedBy = adminID
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete finalizes an approved withdrawal. The reserved funds are settled
// by the ledger in the same transaction that persists this transition.
func (w *Withdrawal) Complete(adminID string) error {
	if w.Status != StatusPending && w.Status != StatusProcessing {
		return fmt.Errorf("%w: status %s", ErrAlreadyProcessed, w.Status)
	}
	now := time.Now().UTC()
	w.Status = StatusCompleted
	w.ProcessedAt = &now
	w.ProcessedBy = adminID
	w.UpdatedAt = now
	return nil
}

// Reject declines the withdrawal; the reserved funds return to
// availability.
func (w *Withdrawal) Reject(adminID, reason string) error {
	if w.Status != StatusPending && w.Status != StatusProcessing {
		return fmt.Errorf("%w: status %s", ErrAlreadyProcessed, w.Status)
	}
	if reason == "" {
		return ErrReasonRequired
	}
	now := time.Now().UTC()
	w.Status = StatusRejected
	w.ProcessedAt = &now
	w.ProcessedBy = adminID
	w.RejectionReason = reason
	w.UpdatedAt = now
	return nil
}

// Cancel lets the requesting user withdraw a request that no admin has
// claimed yet.
func (w *Withdrawal) Cancel(userID string) error {
	if w.UserID != userID {
		return ErrNotOwner
	}
	if w.Status != StatusPending {
		return fmt.Errorf("%w: status %s", ErrAlreadyProcessed, w.Status)
	}
	now := time.Now().UTC()
	w.Status = StatusCancelled
	w.ProcessedAt = &now
	w.UpdatedAt = now
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusRejected || w.Status == StatusCancelled
}
