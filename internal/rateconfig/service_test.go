package rateconfig

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), slog.Default())
}

func TestGetSeedsDefaults(t *testing.T) {
	svc := newTestService()

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultRateBps), cfg.DefaultRateBps)
	assert.Equal(t, Window{StartDay: 26, EndDay: 30}, cfg.Window)
	assert.True(t, cfg.RoleExcluded(RoleAdmin))
	assert.True(t, cfg.RoleExcluded(RoleMarketer))
	assert.False(t, cfg.RoleExcluded(RoleUser))
}

func TestResolveDefaultRate(t *testing.T) {
	svc := newTestService()

	rate, err := svc.Resolve(context.Background(), "aff-1", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultRateBps), rate)
}

func TestResolveOverrideBeatsDefault(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SetUserRate(ctx, "aff-1", 2500, "admin-1")
	require.NoError(t, err)

	rate, err := svc.Resolve(ctx, "aff-1", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), rate)

	// Other affiliates still get the default.
	rate, err = svc.Resolve(ctx, "aff-2", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultRateBps), rate)
}

func TestResolveExcludedRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// The exclusion wins even with a personal override in place.
	_, err := svc.SetUserRate(ctx, "aff-1", 2500, "admin-1")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "aff-1", RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleExcluded)

	_, err = svc.Resolve(ctx, "aff-1", RoleMarketer)
	assert.ErrorIs(t, err, ErrRoleExcluded)
}

func TestSetUserRateRange(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SetUserRate(ctx, "aff-1", -1, "admin-1")
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = svc.SetUserRate(ctx, "aff-1", 10001, "admin-1")
	assert.ErrorIs(t, err, ErrInvalidRate)

	// Zero is a valid rate, it just credits nothing.
	_, err = svc.SetUserRate(ctx, "aff-1", 0, "admin-1")
	assert.NoError(t, err)
}

func TestClearUserRate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SetUserRate(ctx, "aff-1", 2500, "admin-1")
	require.NoError(t, err)

	require.NoError(t, svc.ClearUserRate(ctx, "aff-1"))

	rate, err := svc.Resolve(ctx, "aff-1", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultRateBps), rate)
}

func TestSetRejectsInvalidConfig(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Set(ctx, SetConfigRequest{
		DefaultRateBps: 12000,
		Window:         Window{StartDay: 26, EndDay: 30},
	})
	assert.Error(t, err)

	_, err = svc.Set(ctx, SetConfigRequest{
		DefaultRateBps: 1000,
		Window:         Window{StartDay: 30, EndDay: 26},
	})
	assert.Error(t, err)

	_, err = svc.Set(ctx, SetConfigRequest{
		DefaultRateBps: 1000,
		ExcludedRoles:  []string{"superuser"},
		Window:         Window{StartDay: 26, EndDay: 30},
	})
	assert.Error(t, err)
}

func TestSetPersists(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	updated, err := svc.Set(ctx, SetConfigRequest{
		DefaultRateBps: 500,
		ExcludedRoles:  []string{"admin"},
		Window:         Window{StartDay: 1, EndDay: 5},
		UpdatedBy:      "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), updated.DefaultRateBps)

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), cfg.DefaultRateBps)
	assert.Equal(t, Window{StartDay: 1, EndDay: 5}, cfg.Window)
	assert.False(t, cfg.RoleExcluded(RoleMarketer))
}
