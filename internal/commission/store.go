package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"affiliateplatform/internal/commission/domain"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
	"affiliateplatform/internal/rateconfig"
)

// Store persists commissions and referral links. CreateWithCredit and
// CancelWithReversal pair the commission write with its balance change in a
// single atomic unit.
type Store interface {
	// CreateWithCredit inserts the commission and credits the affiliate's
	// balance atomically. Returns database.ErrAlreadyExists when a
	// commission for the same (affiliate, order) pair exists.
	CreateWithCredit(ctx context.Context, c *domain.Commission) error

	Get(ctx context.Context, id string) (*domain.Commission, error)
	GetByAffiliateOrder(ctx context.Context, affiliateID, orderID string) (*domain.Commission, error)
	ListByAffiliate(ctx context.Context, affiliateID string, limit, offset int) ([]*domain.Commission, int64, error)

	// UpdateStatus persists a status change guarded by the expected prior
	// status; returns database.ErrConflict when the record moved underneath.
	UpdateStatus(ctx context.Context, c *domain.Commission, expected domain.Status) error

	// CancelWithReversal persists the cancellation and posts the
	// compensating balance reversal atomically.
	CancelWithReversal(ctx context.Context, c *domain.Commission, expected domain.Status) error

	// RegisterReferral links a referred user to an affiliate. Returns
	// database.ErrAlreadyExists when the user is already linked.
	RegisterReferral(ctx context.Context, r *domain.Referral) error
	GetReferral(ctx context.Context, referredUserID string) (*domain.Referral, error)
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db       *database.DB
	balances *ledger.PostgresStore
}

// NewPostgresStore creates a new PostgreSQL commission store.
func NewPostgresStore(db *database.DB, balances *ledger.PostgresStore) *PostgresStore {
	return &PostgresStore{db: db, balances: balances}
}

// CreateWithCredit inserts the commission and credits the balance in one
// serializable transaction. The unique index on (affiliate_id, order_id)
// is the idempotency backstop against concurrent duplicate events.
func (s *PostgresStore) CreateWithCredit(ctx context.Context, c *domain.Commission) error {
	return database.Retry(ctx, 3, func() error {
		return s.db.WithTxOptions(ctx, database.SerializableTxOptions(), func(tx pgx.Tx) error {
			query := `
				INSERT INTO commissions (
					id, affiliate_id, referred_user_id, order_id,
					amount_minor, currency, rate_bps, status, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`
			_, err := tx.Exec(ctx, query,
				c.ID, c.AffiliateID, c.ReferredUserID, c.OrderID,
				c.Amount.AmountMinor, c.Amount.Currency, c.RateBps, c.Status,
				c.CreatedAt, c.UpdatedAt,
			)
			if err != nil {
				if database.IsUniqueViolation(err) {
					return database.ErrAlreadyExists
				}
				return fmt.Errorf("inserting commission: %w", err)
			}

			_, err = s.balances.ApplyTx(ctx, tx, c.AffiliateID, func(b *ledgerdomain.Balance) error {
				return b.Credit(c.Amount)
			})
			return err
		})
	})
}

// CancelWithReversal marks the commission cancelled and reverses the credit
// in one serializable transaction. The conditional update guards against a
// concurrent decision on the same record.
func (s *PostgresStore) CancelWithReversal(ctx context.Context, c *domain.Commission, expected domain.Status) error {
	return database.Retry(ctx, 3, func() error {
		return s.db.WithTxOptions(ctx, database.SerializableTxOptions(), func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE commissions
				SET status = $3, updated_at = $4
				WHERE id = $1 AND status = $2
			`, c.ID, expected, c.Status, c.UpdatedAt)
			if err != nil {
				return fmt.Errorf("cancelling commission: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return database.ErrConflict
			}

			_, err = s.balances.ApplyTx(ctx, tx, c.AffiliateID, func(b *ledgerdomain.Balance) error {
				return b.Reverse(c.Amount)
			})
			return err
		})
	})
}

// UpdateStatus persists a non-monetary status change.
func (s *PostgresStore) UpdateStatus(ctx context.Context, c *domain.Commission, expected domain.Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE commissions
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, c.ID, expected, c.Status, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating commission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrConflict
	}
	return nil
}

const commissionColumns = `
	id, affiliate_id, referred_user_id, order_id,
	amount_minor, currency, rate_bps, status, created_at, updated_at
`

// Get retrieves a commission by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Commission, error) {
	row := s.db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, id)
	return scanCommission(row)
}

// GetByAffiliateOrder retrieves a commission by its idempotency key.
func (s *PostgresStore) GetByAffiliateOrder(ctx context.Context, affiliateID, orderID string) (*domain.Commission, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE affiliate_id = $1 AND order_id = $2`,
		affiliateID, orderID)
	return scanCommission(row)
}

// ListByAffiliate lists an affiliate's commissions, newest first.
func (s *PostgresStore) ListByAffiliate(ctx context.Context, affiliateID string, limit, offset int) ([]*domain.Commission, int64, error) {
	var total int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM commissions WHERE affiliate_id = $1`, affiliateID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting commissions: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+commissionColumns+` FROM commissions
		 WHERE affiliate_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		affiliateID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing commissions: %w", err)
	}
	defer rows.Close()

	var commissions []*domain.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, 0, err
		}
		commissions = append(commissions, c)
	}
	return commissions, total, rows.Err()
}

// RegisterReferral inserts a referral link.
func (s *PostgresStore) RegisterReferral(ctx context.Context, r *domain.Referral) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO affiliate_referrals (referred_user_id, affiliate_id, affiliate_role, created_at)
		VALUES ($1, $2, $3, $4)
	`, r.ReferredUserID, r.AffiliateID, r.AffiliateRole, r.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return database.ErrAlreadyExists
		}
		return fmt.Errorf("registering referral: %w", err)
	}
	return nil
}

// GetReferral looks up who referred the given user.
func (s *PostgresStore) GetReferral(ctx context.Context, referredUserID string) (*domain.Referral, error) {
	var r domain.Referral
	var role string
	err := s.db.QueryRow(ctx, `
		SELECT referred_user_id, affiliate_id, affiliate_role, created_at
		FROM affiliate_referrals
		WHERE referred_user_id = $1
	`, referredUserID).Scan(&r.ReferredUserID, &r.AffiliateID, &role, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("getting referral: %w", err)
	}
	r.AffiliateRole = rateconfig.Role(role)
	return &r, nil
}

func scanCommission(row pgx.Row) (*domain.Commission, error) {
	var c domain.Commission
	var amount int64
	var currency money.Currency

	err := row.Scan(
		&c.ID, &c.AffiliateID, &c.ReferredUserID, &c.OrderID,
		&amount, &currency, &c.RateBps, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("scanning commission: %w", err)
	}

	c.Amount = money.New(amount, currency)
	return &c, nil
}
