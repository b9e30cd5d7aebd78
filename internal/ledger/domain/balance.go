// Package domain holds the canonical balance record and the only code
// allowed to mutate it. Every store, postgres or in-memory, funnels balance
// changes through the guarded methods below.
package domain

import (
	"errors"
	"time"

	"affiliateplatform/internal/common/money"
)

// Sentinel errors for balance operations.
var (
	// ErrInvalidAmount rejects zero or negative operation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance rejects a reservation larger than the
	// available funds. A business-rule rejection, safe to surface.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrNegativeResult guards settle/release against driving a field
	// below zero. Reaching it means a bug in the workflow layer, not a
	// user mistake.
	ErrNegativeResult = errors.New("operation would drive balance below zero")

	// ErrReversalConflict rejects reversing funds that are mid-withdrawal.
	ErrReversalConflict = errors.New("funds to reverse are reserved against a withdrawal")

	// ErrConservationViolated reports a broken conservation law.
	ErrConservationViolated = errors.New("balance conservation law violated")

	// ErrCurrencyMismatch rejects operations in a foreign currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Balance is the per-user monetary record.
//
// Conservation law, checked after every mutation:
//
//	Available + PendingWithdrawal + TotalWithdrawn == TotalEarned
type Balance struct {
	UserID            string      `json:"user_id"`
	Available         money.Money `json:"available"`
	PendingWithdrawal money.Money `json:"pending_withdrawal"`
	TotalEarned       money.Money `json:"total_earned"`
	TotalWithdrawn    money.Money `json:"total_withdrawn"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewBalance returns a zero balance for a user.
func NewBalance(userID string, currency money.Currency) *Balance {
	return &Balance{
		UserID:            userID,
		Available:         money.Zero(currency),
		PendingWithdrawal: money.Zero(currency),
		TotalEarned:       money.Zero(currency),
		TotalWithdrawn:    money.Zero(currency),
		UpdatedAt:         time.Now().UTC(),
	}
}

// Currency returns the balance currency.
func (b *Balance) Currency() money.Currency {
	return b.Available.Currency
}

func (b *Balance) checkAmount(amount money.Money) error {
	if amount.Currency != b.Currency() {
		return ErrCurrencyMismatch
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Credit adds earned commission: available and lifetime earnings grow.
func (b *Balance) Credit(amount money.Money) error {
	if err := b.checkAmount(amount); err != nil {
		return err
	}
	b.Available = b.Available.MustAdd(amount)
	b.TotalEarned = b.TotalEarned.MustAdd(amount)
	return b.Verify()
}

// Reserve moves funds from available to pending-withdrawal.
func (b *Balance) Reserve(amount money.Money) error {
	if err := b.checkAmount(amount); err != nil {
		return err
	}
	if b.Available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	b.Available = b.Available.MustSub(amount)
	b.PendingWithdrawal = b.PendingWithdrawal.MustAdd(amount)
	return b.Verify()
}

// Settle finalizes a withdrawal: reserved funds become withdrawn.
func (b *Balance) Settle(amount money.Money) error {
	if err := b.checkAmount(amount); err != nil {
		return err
	}
	if b.PendingWithdrawal.LessThan(amount) {
		return ErrNegativeResult
	}
	b.PendingWithdrawal = b.PendingWithdrawal.MustSub(amount)
	b.TotalWithdrawn = b.TotalWithdrawn.MustAdd(amount)
	return b.Verify()
}

// Release returns reserved funds to availability after a rejection or
// cancellation. Lifetime earnings are untouched.
func (b *Balance) Release(amount money.Money) error {
	if err := b.checkAmount(amount); err != nil {
		return err
	}
	if b.PendingWithdrawal.LessThan(amount) {
		return ErrNegativeResult
	}
	b.PendingWithdrawal = b.PendingWithdrawal.MustSub(amount)
	b.Available = b.Available.MustAdd(amount)
	return b.Verify()
}

// Reverse backs out a cancelled commission. The funds must still be
// available; if the user has already reserved them against a withdrawal the
// reversal fails and must be reconciled by hand, never clamped.
func (b *Balance) Reverse(amount money.Money) error {
	if err := b.checkAmount(amount); err != nil {
		return err
	}
	if b.Available.LessThan(amount) {
		return ErrReversalConflict
	}
	b.Available = b.Available.MustSub(amount)
	b.TotalEarned = b.TotalEarned.MustSub(amount)
	return b.Verify()
}

// Verify asserts the conservation law and field non-negativity.
func (b *Balance) Verify() error {
	if b.Available.IsNegative() || b.PendingWithdrawal.IsNegative() ||
		b.TotalEarned.IsNegative() || b.TotalWithdrawn.IsNegative() {
		return ErrNegativeResult
	}
	sum := b.Available.MustAdd(b.PendingWithdrawal).MustAdd(b.TotalWithdrawn)
	if !sum.Equal(b.TotalEarned) {
		return ErrConservationViolated
	}
	return nil
}
