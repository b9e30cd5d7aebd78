package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger/domain"
)

// Store persists balances. Apply is the atomic read-modify-write primitive:
// the mutate callback runs with the user's balance row locked, and either
// the mutated balance commits or nothing does.
type Store interface {
	Get(ctx context.Context, userID string) (*domain.Balance, error)
	Apply(ctx context.Context, userID string, mutate func(*domain.Balance) error) (*domain.Balance, error)
}

// PostgresStore implements Store using PostgreSQL. Per-user serialization
// comes from SELECT ... FOR UPDATE on the balance row; callers that need to
// combine a balance change with another record write use ApplyTx inside
// their own transaction.
type PostgresStore struct {
	db       *database.DB
	currency money.Currency
}

// NewPostgresStore creates a new PostgreSQL balance store.
func NewPostgresStore(db *database.DB, currency money.Currency) *PostgresStore {
	return &PostgresStore{db: db, currency: currency}
}

// Get returns the user's balance, or a zero balance if none exists yet.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*domain.Balance, error) {
	query := `
		SELECT user_id, currency, available_minor, pending_minor,
		       total_earned_minor, total_withdrawn_minor, updated_at
		FROM balances
		WHERE user_id = $1
	`

	b, err := scanBalance(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewBalance(userID, s.currency), nil
		}
		return nil, fmt.Errorf("getting balance: %w", err)
	}
	return b, nil
}

// Apply runs mutate against the locked balance row in its own transaction,
// retrying bounded times on serialization conflicts.
func (s *PostgresStore) Apply(ctx context.Context, userID string, mutate func(*domain.Balance) error) (*domain.Balance, error) {
	var result *domain.Balance
	err := database.Retry(ctx, 3, func() error {
		return s.db.WithTxOptions(ctx, database.SerializableTxOptions(), func(tx pgx.Tx) error {
			b, err := s.ApplyTx(ctx, tx, userID, mutate)
			if err != nil {
				return err
			}
			result = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyTx locks the user's balance row inside an existing transaction,
// lazily creating a zero row, runs mutate, and writes the result back.
// Composing stores (commission, withdrawal) call this so the balance change
// and their own record write share one commit.
func (s *PostgresStore) ApplyTx(ctx context.Context, tx pgx.Tx, userID string, mutate func(*domain.Balance) error) (*domain.Balance, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (user_id, currency, available_minor, pending_minor,
		                      total_earned_minor, total_withdrawn_minor, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, now())
		ON CONFLICT (user_id) DO NOTHING
	`, userID, s.currency)
	if err != nil {
		return nil, fmt.Errorf("ensuring balance row: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT user_id, currency, available_minor, pending_minor,
		       total_earned_minor, total_withdrawn_minor, updated_at
		FROM balances
		WHERE user_id = $1
		FOR UPDATE
	`, userID)

	b, err := scanBalance(row)
	if err != nil {
		return nil, fmt.Errorf("locking balance: %w", err)
	}

	if err := mutate(b); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE balances
		SET available_minor = $2,
		    pending_minor = $3,
		    total_earned_minor = $4,
		    total_withdrawn_minor = $5,
		    updated_at = now()
		WHERE user_id = $1
	`, b.UserID,
		b.Available.AmountMinor,
		b.PendingWithdrawal.AmountMinor,
		b.TotalEarned.AmountMinor,
		b.TotalWithdrawn.AmountMinor,
	)
	if err != nil {
		return nil, fmt.Errorf("updating balance: %w", err)
	}

	return b, nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	var currency money.Currency
	var available, pending, earned, withdrawn int64

	err := row.Scan(&b.UserID, &currency, &available, &pending, &earned, &withdrawn, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Available = money.New(available, currency)
	b.PendingWithdrawal = money.New(pending, currency)
	b.TotalEarned = money.New(earned, currency)
	b.TotalWithdrawn = money.New(withdrawn, currency)
	return &b, nil
}
