package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies how a transaction moves money relative to the ledger.
type TransactionType string

const (
	// TypeOnramp brings external funds into an account (credits To).
	TypeOnramp TransactionType = "onramp"
	// TypeOfframp moves funds out of the ledger (debits From).
	TypeOfframp TransactionType = "offramp"
	// TypeTransfer moves funds between two internal accounts.
	TypeTransfer TransactionType = "transfer"
)

// TransactionStatus tracks the intent lifecycle for offramps. Onramps and
// transfers are written confirmed.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is a single immutable ledger entry. Balances are never stored
// for transactions; they are derived by replaying the full set.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	Type           TransactionType   `json:"type"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         TransactionStatus `json:"status"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Date           time.Time         `json:"date"`

	// Resolved account metadata, populated on reads that join the users table.
	FromName  string `json:"from_name,omitempty"`
	FromEmail string `json:"from_email,omitempty"`
	ToName    string `json:"to_name,omitempty"`
	ToEmail   string `json:"to_email,omitempty"`
}

// User is an account holder. Balance here is denormalized display state; the
// payout path always recomputes from the transaction log.
type User struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Password    string          `json:"-"`
	TelegramID  string          `json:"telegramId,omitempty"`
	PhoneNumber string          `json:"phonenumber,omitempty"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	Contacts    []string        `json:"contacts"`
}

// PayoutRequest is what the user sends in the API call. AccountID is the
// external payout destination; UserID is the ledger account being debited.
type PayoutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"accountId"`
	Description string          `json:"description,omitempty"`
	UserID      string          `json:"userId"`
}

// PayoutResponse is returned on a successful payout.
type PayoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// ErrorResponse is the failure payload shape for every rejected request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
