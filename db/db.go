package db

import (
	"database/sql"
	"fmt"
)

// Initialize creates the schema if it does not exist yet.
func Initialize(db *sql.DB) error {
	// 1. Users Table
	// balance is denormalized display state; the ledger is the source of truth.
	queryUsers := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password VARCHAR(255) NOT NULL,
		telegram_id VARCHAR(64),
		phonenumber VARCHAR(32),
		name VARCHAR(255),
		balance DECIMAL(18, 2) NOT NULL DEFAULT 0,
		contacts JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(queryUsers); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// 2. Transactions Table
	// UNIQUE constraint on idempotency_key; account refs are opaque strings.
	queryTransactions := `
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		type VARCHAR(16) NOT NULL,
		from_account VARCHAR(64),
		to_account VARCHAR(64),
		amount DECIMAL(18, 2) NOT NULL CHECK (amount > 0),
		status VARCHAR(16) NOT NULL DEFAULT 'confirmed',
		idempotency_key VARCHAR(255) UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(queryTransactions); err != nil {
		return fmt.Errorf("failed to create transactions table: %w", err)
	}

	queryPendingIndex := `
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status)
	WHERE status = 'pending';`

	if _, err := db.Exec(queryPendingIndex); err != nil {
		return fmt.Errorf("failed to create pending index: %w", err)
	}

	return nil
}
