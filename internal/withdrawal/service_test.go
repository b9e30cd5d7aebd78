package withdrawal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
	"affiliateplatform/internal/rateconfig"
	"affiliateplatform/internal/withdrawal/domain"
)

type fixture struct {
	svc      *Service
	balances *ledger.MemoryStore
}

// newFixture pins the clock inside the default 26-30 window unless a test
// moves it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	balances := ledger.NewMemoryStore(money.USD)
	store := NewMemoryStore(balances)
	config := rateconfig.NewService(rateconfig.NewMemoryStore(), slog.Default())

	svc := NewService(store, config, nil, slog.Default())
	svc.now = func() time.Time {
		return time.Date(2025, time.March, 27, 12, 0, 0, 0, time.UTC)
	}
	return &fixture{svc: svc, balances: balances}
}

func (f *fixture) credit(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.balances.Apply(context.Background(), userID, func(b *ledgerdomain.Balance) error {
		return b.Credit(usd(amount))
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string) *ledgerdomain.Balance {
	t.Helper()
	b, err := f.balances.Get(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func usd(amount int64) money.Money {
	return money.New(amount, money.USD)
}

func TestRequestReservesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, w.Status)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(40), b.Available.AmountMinor)
	assert.Equal(t, int64(60), b.PendingWithdrawal.AmountMinor)
}

func TestRequestInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	_, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	// Only 40 remains available; the reserved 60 cannot back a second
	// request.
	_, err = f.svc.Request(ctx, "user-1", usd(60))
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(40), b.Available.AmountMinor)
	assert.Equal(t, int64(60), b.PendingWithdrawal.AmountMinor)
}

func TestRequestOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "user-1", 100)
	f.svc.now = func() time.Time {
		return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	}

	_, err := f.svc.Request(context.Background(), "user-1", usd(50))

	var windowErr *WindowClosedError
	require.ErrorAs(t, err, &windowErr)
	assert.Equal(t, time.Date(2025, time.March, 26, 0, 0, 0, 0, time.UTC), windowErr.NextStart)
	assert.Contains(t, windowErr.Error(), "2025-03-26")

	// Nothing was reserved.
	b := f.balance(t, "user-1")
	assert.Equal(t, int64(100), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
}

func TestApproveSettlesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, w.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, approved.Status)
	assert.Equal(t, "admin-1", approved.ProcessedBy)
	require.NotNil(t, approved.ProcessedAt)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(40), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
	assert.Equal(t, int64(60), b.TotalWithdrawn.AmountMinor)
	assert.Equal(t, int64(100), b.TotalEarned.AmountMinor)
}

func TestRejectReleasesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, w.ID, "admin-1", "account under review")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "account under review", rejected.RejectionReason)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(100), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
	assert.True(t, b.TotalWithdrawn.IsZero())
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, w.ID, "admin-1", "")
	assert.ErrorIs(t, err, domain.ErrReasonRequired)

	// Still pending, funds still reserved.
	got, err := f.svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestCancelByOwnerReleasesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, w.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(100), b.Available.AmountMinor)
	assert.True(t, b.PendingWithdrawal.IsZero())
}

func TestCancelByOtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, w.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestCancelAfterClaimRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, w.ID, "admin-1")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, w.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestDoubleDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, w.ID, "admin-1")
	require.NoError(t, err)

	// A second decision must fail and must not touch the balance again.
	_, err = f.svc.Reject(ctx, w.ID, "admin-2", "changed my mind")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	_, err = f.svc.Approve(ctx, w.ID, "admin-2")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(60), b.TotalWithdrawn.AmountMinor)
	require.NoError(t, b.Verify())
}

func TestClaimIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	w, err := f.svc.Request(ctx, "user-1", usd(60))
	require.NoError(t, err)

	claimed, err := f.svc.Claim(ctx, w.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, claimed.Status)
	assert.Equal(t, "admin-1", claimed.ProcessedBy)

	_, err = f.svc.Claim(ctx, w.ID, "admin-2")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	// The claiming admin can still finish the job.
	_, err = f.svc.Approve(ctx, w.ID, "admin-1")
	assert.NoError(t, err)
}

func TestConcurrentRequestsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Request(ctx, "user-1", usd(80))
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	b := f.balance(t, "user-1")
	assert.Equal(t, int64(20), b.Available.AmountMinor)
	assert.Equal(t, int64(80), b.PendingWithdrawal.AmountMinor)
	require.NoError(t, b.Verify())
}

func TestListByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "user-1", 100)
	f.credit(t, "user-2", 100)

	_, err := f.svc.Request(ctx, "user-1", usd(10))
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, "user-1", usd(20))
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, "user-2", usd(30))
	require.NoError(t, err)

	withdrawals, total, err := f.svc.ListByUser(ctx, "user-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, withdrawals, 2)
}
