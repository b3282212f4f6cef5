package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kestrelpay/payout-api/models"
	"github.com/kestrelpay/payout-api/payout"
	"github.com/kestrelpay/payout-api/transfer"
)

// PayoutService is what the handler needs from the payout layer.
type PayoutService interface {
	RequestPayout(ctx context.Context, req payout.Request) (payout.Result, error)
}

// PayoutHandler processes a payout request: authorize against the ledger,
// dispatch the external transfer, record the debit.
func PayoutHandler(svc PayoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid Body", "")
			return
		}

		if req.Amount.IsZero() || req.AccountID == "" || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "Missing required fields: amount and accountId", "")
			return
		}

		result, err := svc.RequestPayout(r.Context(), payout.Request{
			AccountID:   req.UserID,
			Destination: req.AccountID,
			Amount:      req.Amount,
			Description: req.Description,
		})
		if err != nil {
			writePayoutError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, models.PayoutResponse{
			Success: true,
			Message: "Payout initiated successfully",
			ID:      result.TransferID,
		})
	}
}

func writePayoutError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var provErr *transfer.ProviderError
	switch {
	case errors.Is(err, payout.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Missing required fields: amount and accountId", "")
	case errors.Is(err, payout.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "Insufficient balance", "")
	case errors.As(err, &provErr):
		// Provider rejections surface their own message.
		writeError(w, http.StatusBadRequest, provErr.Message, "")
	case errors.Is(err, payout.ErrAccountBusy):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		logger.Error("error creating payout", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error creating payout", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
