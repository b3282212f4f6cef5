package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kestrelpay/payout-api/models"
)

// Store reads and appends ledger transactions in Postgres.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const fetchAllQuery = `
	SELECT t.id, t.type, t.from_account, t.to_account, t.amount, t.status,
	       COALESCE(t.idempotency_key, ''), t.created_at,
	       COALESCE(fu.name, ''), COALESCE(fu.email, ''),
	       COALESCE(tu.name, ''), COALESCE(tu.email, '')
	FROM transactions t
	LEFT JOIN users fu ON fu.id::text = t.from_account
	LEFT JOIN users tu ON tu.id::text = t.to_account
	ORDER BY t.created_at DESC`

// FetchAll returns every transaction with account metadata resolved. Retrieval
// order is newest-first for display; balance computation ignores it.
func (s *Store) FetchAll(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, fetchAllQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(
			&t.ID, &t.Type, &t.From, &t.To, &t.Amount, &t.Status,
			&t.IdempotencyKey, &t.Date,
			&t.FromName, &t.FromEmail, &t.ToName, &t.ToEmail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// AppendPending writes a new offramp intent in the pending state. The unique
// idempotency key doubles as the dedupe guard at the database level.
func (s *Store) AppendPending(ctx context.Context, t *models.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, type, from_account, to_account, amount, status, idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Type, t.From, t.To, t.Amount, models.StatusPending, t.IdempotencyKey, t.Date)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// Confirm promotes a pending intent after the external transfer succeeded.
func (s *Store) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.StatusConfirmed)
}

// Fail marks a pending intent whose external transfer was rejected. Failed
// entries no longer count against the balance.
func (s *Store) Fail(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.StatusFailed)
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		status, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// StalePending returns pending intents created before cutoff, for the
// reconciliation sweep.
func (s *Store) StalePending(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, from_account, to_account, amount, status, COALESCE(idempotency_key, ''), created_at
		 FROM transactions
		 WHERE status = $1 AND created_at < $2`,
		models.StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.From, &t.To, &t.Amount, &t.Status, &t.IdempotencyKey, &t.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// RefreshUserBalance updates the denormalized users.balance column. Display
// only; the payout path never reads it back.
func (s *Store) RefreshUserBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET balance = $1, updated_at = CURRENT_TIMESTAMP WHERE id::text = $2`,
		balance, accountID)
	if err != nil {
		return fmt.Errorf("failed to update user balance: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		s.logger.Debug("no user row for balance refresh", zap.String("accountID", accountID))
	}
	return nil
}
