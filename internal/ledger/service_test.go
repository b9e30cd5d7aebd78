package ledger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger/domain"
)

func TestGetBalanceStartsAtZero(t *testing.T) {
	svc := NewService(NewMemoryStore(money.USD), slog.Default())

	b, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", b.UserID)
	assert.True(t, b.Available.IsZero())
}

func TestCreditThenReserve(t *testing.T) {
	svc := NewService(NewMemoryStore(money.USD), slog.Default())
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", money.New(1000, money.USD))
	require.NoError(t, err)

	b, err := svc.Reserve(ctx, "user-1", money.New(400, money.USD))
	require.NoError(t, err)
	assert.Equal(t, int64(600), b.Available.AmountMinor)
	assert.Equal(t, int64(400), b.PendingWithdrawal.AmountMinor)
}

func TestFailedMutationLeavesBalanceUntouched(t *testing.T) {
	svc := NewService(NewMemoryStore(money.USD), slog.Default())
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", money.New(100, money.USD))
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, "user-1", money.New(500, money.USD))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	b, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
}
