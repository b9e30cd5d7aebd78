package rateconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"affiliateplatform/internal/common/database"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// The config lives in a single row with a fixed id.
const configRowID = 1

// GetConfig loads the singleton configuration.
func (s *PostgresStore) GetConfig(ctx context.Context) (*RateConfig, error) {
	query := `
		SELECT default_rate_bps, excluded_roles, window_start_day, window_end_day,
		       updated_by, updated_at
		FROM rate_config
		WHERE id = $1
	`

	var cfg RateConfig
	var roles []string
	err := s.db.QueryRow(ctx, query, configRowID).Scan(
		&cfg.DefaultRateBps,
		&roles,
		&cfg.Window.StartDay,
		&cfg.Window.EndDay,
		&cfg.UpdatedBy,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("getting rate config: %w", err)
	}

	cfg.ExcludedRoles = make([]Role, len(roles))
	for i, r := range roles {
		cfg.ExcludedRoles[i] = Role(r)
	}
	return &cfg, nil
}

// SaveConfig upserts the singleton configuration.
func (s *PostgresStore) SaveConfig(ctx context.Context, cfg *RateConfig) error {
	query := `
		INSERT INTO rate_config (
			id, default_rate_bps, excluded_roles, window_start_day, window_end_day,
			updated_by, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			default_rate_bps = EXCLUDED.default_rate_bps,
			excluded_roles   = EXCLUDED.excluded_roles,
			window_start_day = EXCLUDED.window_start_day,
			window_end_day   = EXCLUDED.window_end_day,
			updated_by       = EXCLUDED.updated_by,
			updated_at       = EXCLUDED.updated_at
	`

	roles := make([]string, len(cfg.ExcludedRoles))
	for i, r := range cfg.ExcludedRoles {
		roles[i] = string(r)
	}

	_, err := s.db.Exec(ctx, query,
		configRowID,
		cfg.DefaultRateBps,
		roles,
		cfg.Window.StartDay,
		cfg.Window.EndDay,
		cfg.UpdatedBy,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving rate config: %w", err)
	}
	return nil
}

// GetUserRate loads a per-user override.
func (s *PostgresStore) GetUserRate(ctx context.Context, userID string) (*UserRate, error) {
	query := `
		SELECT user_id, rate_bps, updated_by, updated_at
		FROM user_rates
		WHERE user_id = $1
	`

	var rate UserRate
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&rate.UserID,
		&rate.RateBps,
		&rate.UpdatedBy,
		&rate.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("getting user rate: %w", err)
	}
	return &rate, nil
}

// UpsertUserRate writes a per-user override keyed on the user ID.
func (s *PostgresStore) UpsertUserRate(ctx context.Context, rate *UserRate) error {
	query := `
		INSERT INTO user_rates (user_id, rate_bps, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			rate_bps   = EXCLUDED.rate_bps,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(ctx, query, rate.UserID, rate.RateBps, rate.UpdatedBy, rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user rate: %w", err)
	}
	return nil
}

// DeleteUserRate removes a per-user override.
func (s *PostgresStore) DeleteUserRate(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_rates WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user rate: %w", err)
	}
	return nil
}
