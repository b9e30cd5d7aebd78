package rateconfig

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"affiliateplatform/internal/common/database"
)

// Store persists the rate configuration and per-user overrides.
type Store interface {
	// GetConfig returns the singleton config, or database.ErrNotFound when
	// it has never been written.
	GetConfig(ctx context.Context) (*RateConfig, error)
	SaveConfig(ctx context.Context, cfg *RateConfig) error

	// GetUserRate returns database.ErrNotFound when no override exists.
	GetUserRate(ctx context.Context, userID string) (*UserRate, error)
	UpsertUserRate(ctx context.Context, rate *UserRate) error
	DeleteUserRate(ctx context.Context, userID string) error
}

// Service reads and mutates the commission rate configuration. It is the
// single injected source of rate and window settings; nothing else reads
// the config tables.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a rate configuration service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get returns the current configuration, lazily seeding the defaults the
// first time it is read.
func (s *Service) Get(ctx context.Context) (*RateConfig, error) {
	cfg, err := s.store.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("loading rate config: %w", err)
	}

	cfg = DefaultConfig()
	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		// A concurrent first read may have seeded it already.
		if existing, getErr := s.store.GetConfig(ctx); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("seeding default rate config: %w", err)
	}

	s.logger.Info("rate config seeded with defaults",
		"default_rate_bps", cfg.DefaultRateBps,
		"window_start", cfg.Window.StartDay,
		"window_end", cfg.Window.EndDay,
	)
	return cfg, nil
}

// SetConfigRequest carries an admin config update.
type SetConfigRequest struct {
	DefaultRateBps int64
	ExcludedRoles  []string
	Window         Window
	UpdatedBy      string
}

// Set validates and persists a new configuration.
func (s *Service) Set(ctx context.Context, req SetConfigRequest) (*RateConfig, error) {
	roles := make([]Role, 0, len(req.ExcludedRoles))
	for _, r := range req.ExcludedRoles {
		role, err := ParseRole(r)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	cfg := &RateConfig{
		DefaultRateBps: req.DefaultRateBps,
		ExcludedRoles:  roles,
		Window:         req.Window,
		UpdatedBy:      req.UpdatedBy,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("saving rate config: %w", err)
	}

	s.logger.Info("rate config updated",
		"default_rate_bps", cfg.DefaultRateBps,
		"excluded_roles", cfg.ExcludedRoles,
		"window_start", cfg.Window.StartDay,
		"window_end", cfg.Window.EndDay,
		"updated_by", cfg.UpdatedBy,
	)
	return cfg, nil
}

// Resolve returns the effective commission rate in basis points for an
// affiliate, or ErrRoleExcluded when the role is ineligible. A per-user
// override takes precedence over the default rate.
func (s *Service) Resolve(ctx context.Context, affiliateID string, role Role) (int64, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}

	if cfg.RoleExcluded(role) {
		return 0, fmt.Errorf("affiliate %s: %w", affiliateID, ErrRoleExcluded)
	}

	override, err := s.store.GetUserRate(ctx, affiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return cfg.DefaultRateBps, nil
		}
		return 0, fmt.Errorf("loading user rate: %w", err)
	}
	return override.RateBps, nil
}

// SetUserRate validates and upserts a per-user override. Upserting on the
// user ID keeps overrides unique per user.
func (s *Service) SetUserRate(ctx context.Context, userID string, rateBps int64, adminID string) (*UserRate, error) {
	if rateBps < MinRateBps || rateBps > MaxRateBps {
		return nil, ErrInvalidRate
	}

	rate := &UserRate{
		UserID:    userID,
		RateBps:   rateBps,
		UpdatedBy: adminID,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertUserRate(ctx, rate); err != nil {
		return nil, fmt.Errorf("saving user rate: %w", err)
	}

	s.logger.Info("user rate override set",
		"user_id", userID,
		"rate_bps", rateBps,
		"updated_by", adminID,
	)
	return rate, nil
}

// ClearUserRate removes a per-user override so the default applies again.
func (s *Service) ClearUserRate(ctx context.Context, userID string) error {
	if err := s.store.DeleteUserRate(ctx, userID); err != nil {
		return fmt.Errorf("deleting user rate: %w", err)
	}
	return nil
}

// CurrentWindow returns the configured withdrawal window.
func (s *Service) CurrentWindow(ctx context.Context) (Window, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return Window{}, err
	}
	return cfg.Window, nil
}
