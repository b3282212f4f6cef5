// Package transfer talks to the external payout provider. It is the only
// place amounts leave ledger units: the provider API takes integer minor
// units of the base currency.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MinorUnitFactor converts base currency units to the provider's minor-unit
// encoding (two decimal places).
const MinorUnitFactor = 100

// MinorUnits converts a ledger amount to provider minor units, rounding
// half-up the way the provider expects.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(MinorUnitFactor)).Round(0).IntPart()
}

// ProviderError is a rejection classified by the provider itself. Its message
// is surfaced to the caller verbatim, unlike generic failures.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Request describes one outbound transfer.
type Request struct {
	AmountMinor    int64
	Currency       string
	Destination    string
	Description    string
	IdempotencyKey string
}

// Client is the external payout capability.
type Client interface {
	// CreateTransfer dispatches a transfer and returns the provider's opaque
	// transfer id. A *ProviderError means the provider rejected it; any other
	// error (including timeouts) means the outcome is unknown.
	CreateTransfer(ctx context.Context, req Request) (string, error)
	// LookupTransfer reports whether a transfer with the given idempotency key
	// exists at the provider. Used by the reconciliation sweep.
	LookupTransfer(ctx context.Context, idempotencyKey string) (string, bool, error)
}

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type transferPayload struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	Description string `json:"description"`
}

type transferResource struct {
	ID    string `json:"id"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) CreateTransfer(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(transferPayload{
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Destination: req.Destination,
		Description: req.Description,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build transfer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Timeouts land here: the transfer may or may not have gone through.
		return "", fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	var res transferResource
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
		return "", fmt.Errorf("failed to decode transfer response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("transfer created",
			zap.String("id", res.ID),
			zap.Int64("amountMinor", req.AmountMinor),
			zap.String("destination", req.Destination))
		return res.ID, nil
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && res.Error != nil {
		return "", &ProviderError{Code: res.Error.Code, Message: res.Error.Message}
	}
	return "", fmt.Errorf("transfer request failed with status %d", resp.StatusCode)
}

type transferList struct {
	Data []transferResource `json:"data"`
}

func (c *HTTPClient) LookupTransfer(ctx context.Context, idempotencyKey string) (string, bool, error) {
	u := c.baseURL + "/v1/transfers?idempotency_key=" + url.QueryEscape(idempotencyKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to build lookup request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("lookup request failed with status %d", resp.StatusCode)
	}

	var list transferList
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&list); err != nil {
		return "", false, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if len(list.Data) == 0 {
		return "", false, nil
	}
	return list.Data[0].ID, true, nil
}
