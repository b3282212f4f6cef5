// Package payout authorizes ledger debits and drives the external transfer.
//
// The order of operations is the whole point: acquire the account lock,
// replay the ledger, reject if short, write a durable pending intent, call
// the provider, then promote the intent. A crash anywhere in between leaves a
// pending debit that still counts against the balance until the
// reconciliation sweep resolves it against the provider.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kestrelpay/payout-api/ledger"
	"github.com/kestrelpay/payout-api/models"
	"github.com/kestrelpay/payout-api/transfer"
)

var (
	// ErrInvalidRequest means required fields are missing or not positive.
	ErrInvalidRequest = errors.New("missing required fields: amount and accountId")

	// ErrInsufficientBalance means the replayed balance does not cover the
	// requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountBusy means another payout for the same account holds the lock.
	ErrAccountBusy = errors.New("a payout for this account is currently being processed")
)

// ReconcileCutoff is how old a pending intent must be before the sweep
// considers it stuck and asks the provider what happened.
const ReconcileCutoff = 15 * time.Minute

// Store is the ledger persistence the service needs.
type Store interface {
	FetchAll(ctx context.Context) ([]models.Transaction, error)
	AppendPending(ctx context.Context, t *models.Transaction) error
	Confirm(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
	StalePending(ctx context.Context, cutoff time.Time) ([]models.Transaction, error)
	RefreshUserBalance(ctx context.Context, accountID string, balance decimal.Decimal) error
}

// Request is a validated-enough payout order. AccountID is the ledger account
// being debited, Destination the external payout target.
type Request struct {
	AccountID   string
	Destination string
	Amount      decimal.Decimal
	Description string
}

// Result reports a dispatched payout.
type Result struct {
	TransferID string
}

// Service implements the payout authorizer/recorder.
type Service struct {
	store     Store
	transfers transfer.Client
	locks     Locks
	sink      string
	currency  string
	logger    *zap.Logger
}

func NewService(store Store, transfers transfer.Client, locks Locks, sink, currency string, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		transfers: transfers,
		locks:     locks,
		sink:      sink,
		currency:  currency,
		logger:    logger,
	}
}

// RequestPayout authorizes and executes a single payout.
func (s *Service) RequestPayout(ctx context.Context, req Request) (Result, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) || req.Destination == "" || req.AccountID == "" {
		return Result{}, ErrInvalidRequest
	}

	release, ok, err := s.locks.Acquire(ctx, req.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to acquire account lock: %w", err)
	}
	if !ok {
		return Result{}, ErrAccountBusy
	}
	defer release()

	txs, err := s.store.FetchAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load transactions: %w", err)
	}

	balance := ledger.ComputeBalance(req.AccountID, txs)
	if balance.LessThan(req.Amount) {
		s.logger.Warn("insufficient balance",
			zap.String("accountID", req.AccountID),
			zap.String("available", balance.String()),
			zap.String("requested", req.Amount.String()))
		return Result{}, ErrInsufficientBalance
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Payout to %s", req.Destination)
	}

	intent := &models.Transaction{
		ID:             uuid.New(),
		Type:           models.TypeOfframp,
		From:           req.AccountID,
		To:             s.sink,
		Amount:         req.Amount,
		Status:         models.StatusPending,
		IdempotencyKey: uuid.NewString(),
		Date:           time.Now().UTC(),
	}
	if err := s.store.AppendPending(ctx, intent); err != nil {
		return Result{}, fmt.Errorf("failed to record payout intent: %w", err)
	}

	transferID, err := s.transfers.CreateTransfer(ctx, transfer.Request{
		AmountMinor:    transfer.MinorUnits(req.Amount),
		Currency:       s.currency,
		Destination:    req.Destination,
		Description:    description,
		IdempotencyKey: intent.IdempotencyKey,
	})
	if err != nil {
		var provErr *transfer.ProviderError
		if errors.As(err, &provErr) {
			// Definitive rejection: release the reserved funds.
			if failErr := s.store.Fail(ctx, intent.ID); failErr != nil {
				s.logger.Error("failed to mark rejected payout intent",
					zap.String("intentID", intent.ID.String()), zap.Error(failErr))
			}
			return Result{}, provErr
		}
		// Unknown outcome (timeout, network). The intent stays pending and
		// keeps debiting the balance until the reconciler resolves it.
		s.logger.Error("transfer outcome unknown, leaving intent pending",
			zap.String("intentID", intent.ID.String()),
			zap.String("idempotencyKey", intent.IdempotencyKey),
			zap.Error(err))
		return Result{}, fmt.Errorf("transfer dispatch failed: %w", err)
	}

	if err := s.store.Confirm(ctx, intent.ID); err != nil {
		// Money moved. The pending intent already debits the balance, so
		// report success and let the reconciler promote it.
		s.logger.Error("transfer succeeded but confirmation failed",
			zap.String("intentID", intent.ID.String()),
			zap.String("transferID", transferID),
			zap.Error(err))
		return Result{TransferID: transferID}, nil
	}

	s.refreshDisplayBalance(ctx, req.AccountID, balance.Sub(req.Amount))

	s.logger.Info("payout initiated",
		zap.String("accountID", req.AccountID),
		zap.String("destination", req.Destination),
		zap.String("amount", req.Amount.String()),
		zap.String("transferID", transferID))
	return Result{TransferID: transferID}, nil
}

// refreshDisplayBalance updates the denormalized user balance. Best effort;
// the value is never used for authorization.
func (s *Service) refreshDisplayBalance(ctx context.Context, accountID string, balance decimal.Decimal) {
	if err := s.store.RefreshUserBalance(ctx, accountID, balance); err != nil {
		s.logger.Warn("failed to refresh display balance",
			zap.String("accountID", accountID), zap.Error(err))
	}
}

// ReconcilePending resolves intents stuck in pending: if the provider knows
// the idempotency key the transfer went through and the intent is confirmed,
// if it definitively does not the intent is failed. Lookup errors leave the
// intent alone for the next sweep.
func (s *Service) ReconcilePending(ctx context.Context) error {
	stale, err := s.store.StalePending(ctx, time.Now().UTC().Add(-ReconcileCutoff))
	if err != nil {
		return fmt.Errorf("failed to load stale intents: %w", err)
	}

	for _, intent := range stale {
		transferID, found, err := s.transfers.LookupTransfer(ctx, intent.IdempotencyKey)
		if err != nil {
			s.logger.Warn("reconcile lookup failed",
				zap.String("intentID", intent.ID.String()), zap.Error(err))
			continue
		}
		if found {
			if err := s.store.Confirm(ctx, intent.ID); err != nil {
				s.logger.Error("reconcile confirm failed",
					zap.String("intentID", intent.ID.String()), zap.Error(err))
				continue
			}
			s.logger.Info("reconciled pending payout as confirmed",
				zap.String("intentID", intent.ID.String()),
				zap.String("transferID", transferID))
			continue
		}
		if err := s.store.Fail(ctx, intent.ID); err != nil {
			s.logger.Error("reconcile fail-out failed",
				zap.String("intentID", intent.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("reconciled pending payout as failed",
			zap.String("intentID", intent.ID.String()))
	}
	return nil
}

// RunReconciler sweeps on a fixed interval until ctx is cancelled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ReconcilePending(ctx); err != nil {
				s.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}
