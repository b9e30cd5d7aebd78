package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliateplatform/internal/common/money"
)

func usd(amount int64) money.Money {
	return money.New(amount, money.USD)
}

func TestNewBalanceIsZero(t *testing.T) {
	b := NewBalance("user-1", money.USD)

	assert.True(t, b.Available.IsZero())
	assert.True(t, b.PendingWithdrawal.IsZero())
	assert.True(t, b.TotalEarned.IsZero())
	assert.True(t, b.TotalWithdrawn.IsZero())
	require.NoError(t, b.Verify())
}

func TestCredit(t *testing.T) {
	b := NewBalance("user-1", money.USD)

	require.NoError(t, b.Credit(usd(1000)))
	require.NoError(t, b.Credit(usd(500)))

	assert.Equal(t, int64(1500), b.Available.AmountMinor)
	assert.Equal(t, int64(1500), b.TotalEarned.AmountMinor)
}

func TestCreditRejectsNonPositive(t *testing.T) {
	b := NewBalance("user-1", money.USD)

	assert.ErrorIs(t, b.Credit(usd(0)), ErrInvalidAmount)
	assert.ErrorIs(t, b.Credit(usd(-100)), ErrInvalidAmount)
}

func TestCreditRejectsCurrencyMismatch(t *testing.T) {
	b := NewBalance("user-1", money.USD)

	assert.ErrorIs(t, b.Credit(money.New(100, money.EUR)), ErrCurrencyMismatch)
}

func TestReserveMovesAvailableToPending(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(1000)))

	require.NoError(t, b.Reserve(usd(600)))

	assert.Equal(t, int64(400), b.Available.AmountMinor)
	assert.Equal(t, int64(600), b.PendingWithdrawal.AmountMinor)
	assert.Equal(t, int64(1000), b.TotalEarned.AmountMinor)
}

func TestReserveInsufficientFunds(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(100)))

	assert.ErrorIs(t, b.Reserve(usd(101)), ErrInsufficientBalance)

	// Nothing moved.
	assert.Equal(t, int64(100), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
}

func TestSettleMovesPendingToWithdrawn(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(1000)))
	require.NoError(t, b.Reserve(usd(600)))

	require.NoError(t, b.Settle(usd(600)))

	assert.Equal(t, int64(400), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
	assert.Equal(t, int64(600), b.TotalWithdrawn.AmountMinor)
	assert.Equal(t, int64(1000), b.TotalEarned.AmountMinor)
}

func TestSettleMoreThanPending(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(1000)))
	require.NoError(t, b.Reserve(usd(200)))

	assert.ErrorIs(t, b.Settle(usd(300)), ErrNegativeResult)
}

func TestReleaseReturnsPendingToAvailable(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(1000)))
	require.NoError(t, b.Reserve(usd(600)))

	require.NoError(t, b.Release(usd(600)))

	assert.Equal(t, int64(1000), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
	assert.True(t, b.TotalWithdrawn.IsZero())
}

func TestReverseRemovesEarnings(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(1000)))

	require.NoError(t, b.Reverse(usd(400)))

	assert.Equal(t, int64(600), b.Available.AmountMinor)
	assert.Equal(t, int64(600), b.TotalEarned.AmountMinor)
}

func TestReverseMoreThanAvailable(t *testing.T) {
	b := NewBalance("user-1", money.USD)
	require.NoError(t, b.Credit(usd(1000)))
	require.NoError(t, b.Reserve(usd(800)))

	// Only 200 is still available; the rest is locked in a withdrawal.
	assert.ErrorIs(t, b.Reverse(usd(300)), ErrReversalConflict)
}

func TestConservationHoldsAcrossLifecycle(t *testing.T) {
	b := NewBalance("user-1", money.USD)

	require.NoError(t, b.Credit(usd(1000)))
	require.NoError(t, b.Credit(usd(250)))
	require.NoError(t, b.Reserve(usd(700)))
	require.NoError(t, b.Settle(usd(700)))
	require.NoError(t, b.Credit(usd(500)))
	require.NoError(t, b.Reserve(usd(300)))
	require.NoError(t, b.Release(usd(300)))
	require.NoError(t, b.Reverse(usd(100)))

	require.NoError(t, b.Verify())

	total := b.Available.AmountMinor + b.PendingWithdrawal.AmountMinor + b.TotalWithdrawn.AmountMinor
	assert.Equal(t, b.TotalEarned.AmountMinor, total)
}
