package commission

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliateplatform/internal/commission/domain"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger"
	"affiliateplatform/internal/rateconfig"
)

type fixture struct {
	svc      *Service
	balances *ledger.MemoryStore
	rates    *rateconfig.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	balances := ledger.NewMemoryStore(money.USD)
	store := NewMemoryStore(balances)
	rates := rateconfig.NewService(rateconfig.NewMemoryStore(), slog.Default())
	return &fixture{
		svc:      NewService(store, rates, nil, slog.Default()),
		balances: balances,
		rates:    rates,
	}
}

func (f *fixture) available(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.balances.Get(context.Background(), userID)
	require.NoError(t, err)
	return b.Available.AmountMinor
}

func usd(amount int64) money.Money {
	return money.New(amount, money.USD)
}

func TestCreditCommission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)

	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1",
		BuyerID: "buyer-1",
		Total:   usd(10000),
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "aff-1", c.AffiliateID)
	assert.Equal(t, domain.StatusPending, c.Status)
	assert.Equal(t, int64(1000), c.Amount.AmountMinor) // 10% default
	assert.Equal(t, int64(1000), f.available(t, "aff-1"))
}

func TestCreditCommissionIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)

	order := OrderCompleted{OrderID: "order-1", BuyerID: "buyer-1", Total: usd(10000)}

	first, err := f.svc.CreditCommission(ctx, order)
	require.NoError(t, err)

	// Redelivery of the same order must not credit twice.
	second, err := f.svc.CreditCommission(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1000), f.available(t, "aff-1"))
}

func TestCreditCommissionNoReferrer(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.CreditCommission(context.Background(), OrderCompleted{
		OrderID: "order-1",
		BuyerID: "buyer-unreferred",
		Total:   usd(10000),
	})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCreditCommissionExcludedRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-admin", "buyer-1", rateconfig.RoleAdmin)
	require.NoError(t, err)

	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1",
		BuyerID: "buyer-1",
		Total:   usd(10000),
	})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, int64(0), f.available(t, "aff-admin"))
}

func TestCreditCommissionUsesOverrideRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rates.SetUserRate(ctx, "aff-1", 2500, "admin-1")
	require.NoError(t, err)
	_, err = f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)

	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1",
		BuyerID: "buyer-1",
		Total:   usd(10000),
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(2500), c.Amount.AmountMinor)
	assert.Equal(t, int64(2500), c.RateBps)
}

func TestCreditCommissionZeroRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rates.SetUserRate(ctx, "aff-1", 0, "admin-1")
	require.NoError(t, err)
	_, err = f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)

	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1",
		BuyerID: "buyer-1",
		Total:   usd(10000),
	})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, int64(0), f.available(t, "aff-1"))
}

func TestAmountFixedAtCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)

	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1",
		BuyerID: "buyer-1",
		Total:   usd(10000),
	})
	require.NoError(t, err)

	// Raising the rate afterwards must not change the existing commission.
	_, err = f.rates.SetUserRate(ctx, "aff-1", 5000, "admin-1")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Amount.AmountMinor)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)
	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1", BuyerID: "buyer-1", Total: usd(10000),
	})
	require.NoError(t, err)

	approved, err := f.svc.UpdateStatus(ctx, c.ID, domain.StatusApproved, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)

	paid, err := f.svc.UpdateStatus(ctx, c.ID, domain.StatusPaid, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)

	// Paid is terminal.
	_, err = f.svc.UpdateStatus(ctx, c.ID, domain.StatusCancelled, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelReversesCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)
	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1", BuyerID: "buyer-1", Total: usd(10000),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), f.available(t, "aff-1"))

	cancelled, err := f.svc.UpdateStatus(ctx, c.ID, domain.StatusCancelled, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(0), f.available(t, "aff-1"))
}

func TestCannotApproveTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterReferral(ctx, "aff-1", "buyer-1", rateconfig.RoleUser)
	require.NoError(t, err)
	c, err := f.svc.CreditCommission(ctx, OrderCompleted{
		OrderID: "order-1", BuyerID: "buyer-1", Total: usd(10000),
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, c.ID, domain.StatusCancelled, "admin-1")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, c.ID, domain.StatusApproved, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSelfReferralRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterReferral(context.Background(), "aff-1", "aff-1", rateconfig.RoleUser)
	assert.Error(t, err)
}
