package withdrawal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/ledger"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
	"affiliateplatform/internal/withdrawal/domain"
)

// Store persists withdrawals. The reservation, settle and release variants
// pair the withdrawal write with its balance change in one atomic unit, so
// a withdrawal can never be terminal while the ledger still holds funds
// reserved against it, or vice versa.
type Store interface {
	// CreateWithReservation reserves the funds and inserts the pending
	// withdrawal atomically. ErrInsufficientBalance propagates from the
	// ledger untouched.
	CreateWithReservation(ctx context.Context, w *domain.Withdrawal) error

	Get(ctx context.Context, id string) (*domain.Withdrawal, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Withdrawal, int64, error)
	ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Withdrawal, int64, error)

	// UpdateStatus persists a non-monetary transition (the processing
	// claim) guarded by the expected prior status; database.ErrConflict
	// when the record moved underneath.
	UpdateStatus(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error

	// FinalizeSettle persists a completion and settles the reserved funds
	// atomically.
	FinalizeSettle(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error

	// FinalizeRelease persists a rejection or cancellation and releases
	// the reserved funds back to availability atomically.
	FinalizeRelease(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db       *database.DB
	balances *ledger.PostgresStore
}

// NewPostgresStore creates a new PostgreSQL withdrawal store.
func NewPostgresStore(db *database.DB, balances *ledger.PostgresStore) *PostgresStore {
	return &PostgresStore{db: db, balances: balances}
}

// CreateWithReservation reserves funds and inserts the withdrawal in one
// serializable transaction. The balance row lock serializes concurrent
// requests for the same user, so the available-funds check and the debit
// cannot interleave.
func (s *PostgresStore) CreateWithReservation(ctx context.Context, w *domain.Withdrawal) error {
	return database.Retry(ctx, 3, func() error {
		return s.db.WithTxOptions(ctx, database.SerializableTxOptions(), func(tx pgx.Tx) error {
			if _, err := s.balances.ApplyTx(ctx, tx, w.UserID, func(b *ledgerdomain.Balance) error {
				return b.Reserve(w.Amount)
			}); err != nil {
				return err
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO withdrawals (
					id, user_id, amount_minor, currency, status,
					requested_at, processed_at, processed_by, rejection_reason, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, w.ID, w.UserID, w.Amount.AmountMinor, w.Amount.Currency, w.Status,
				w.RequestedAt, w.ProcessedAt, w.ProcessedBy, w.RejectionReason, w.UpdatedAt)
			if err != nil {
				return fmt.Errorf("inserting withdrawal: %w", err)
			}
			return nil
		})
	})
}

// FinalizeSettle completes the withdrawal and settles the reserved funds.
func (s *PostgresStore) FinalizeSettle(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error {
	return s.finalize(ctx, w, expected, func(b *ledgerdomain.Balance) error {
		return b.Settle(w.Amount)
	})
}

// FinalizeRelease rejects or cancels the withdrawal and releases the funds.
func (s *PostgresStore) FinalizeRelease(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error {
	return s.finalize(ctx, w, expected, func(b *ledgerdomain.Balance) error {
		return b.Release(w.Amount)
	})
}

func (s *PostgresStore) finalize(ctx context.Context, w *domain.Withdrawal, expected domain.Status, mutate func(*ledgerdomain.Balance) error) error {
	return database.Retry(ctx, 3, func() error {
		return s.db.WithTxOptions(ctx, database.SerializableTxOptions(), func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE withdrawals
				SET status = $3, processed_at = $4, processed_by = $5,
				    rejection_reason = $6, updated_at = $7
				WHERE id = $1 AND status = $2
			`, w.ID, expected, w.Status, w.ProcessedAt, w.ProcessedBy, w.RejectionReason, w.UpdatedAt)
			if err != nil {
				return fmt.Errorf("updating withdrawal: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return database.ErrConflict
			}

			_, err = s.balances.ApplyTx(ctx, tx, w.UserID, mutate)
			return err
		})
	})
}

// UpdateStatus persists the processing claim.
func (s *PostgresStore) UpdateStatus(ctx context.Context, w *domain.Withdrawal, expected domain.Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE withdrawals
		SET status = $3, processed_by = $4, updated_at = $5
		WHERE id = $1 AND status = $2
	`, w.ID, expected, w.Status, w.ProcessedBy, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrConflict
	}
	return nil
}

const withdrawalColumns = `
	id, user_id, amount_minor, currency, status,
	requested_at, processed_at, processed_by, rejection_reason, updated_at
`

// Get retrieves a withdrawal by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Withdrawal, error) {
	row := s.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	return scanWithdrawal(row)
}

// ListByUser lists a user's withdrawals, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	return s.list(ctx, `user_id = $1`, userID, limit, offset)
}

// ListByStatus lists withdrawals in a given state, newest first.
func (s *PostgresStore) ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	return s.list(ctx, `status = $1`, string(status), limit, offset)
}

func (s *PostgresStore) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals WHERE `+where, arg).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting withdrawals: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE `+where+`
		 ORDER BY requested_at DESC
		 LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, total, rows.Err()
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var amount int64
	var currency money.Currency

	err := row.Scan(
		&w.ID, &w.UserID, &amount, &currency, &w.Status,
		&w.RequestedAt, &w.ProcessedAt, &w.ProcessedBy, &w.RejectionReason, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("scanning withdrawal: %w", err)
	}

	w.Amount = money.New(amount, currency)
	return &w, nil
}
