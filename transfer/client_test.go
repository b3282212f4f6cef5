package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"200", 20000},
		{"0.01", 1},
		{"12.34", 1234},
		{"10.005", 1001}, // round half up
		{"10.004", 1000},
	}
	for _, c := range cases {
		amount, err := decimal.NewFromString(c.amount)
		require.NoError(t, err)
		assert.Equal(t, c.want, MinorUnits(amount), "amount %s", c.amount)
	}
}

func TestCreateTransferSuccess(t *testing.T) {
	var gotBody transferPayload
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/transfers", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"id": "tr_42"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "sk_test", zap.NewNop())
	id, err := client.CreateTransfer(context.Background(), Request{
		AmountMinor:    20000,
		Currency:       "usd",
		Destination:    "acct_dest",
		Description:    "Payout to acct_dest",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_42", id)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, int64(20000), gotBody.Amount)
	assert.Equal(t, "usd", gotBody.Currency)
	assert.Equal(t, "acct_dest", gotBody.Destination)
}

func TestCreateTransferProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"code":    "balance_insufficient",
				"message": "Your provider balance is too low",
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "sk_test", zap.NewNop())
	_, err := client.CreateTransfer(context.Background(), Request{AmountMinor: 100, Currency: "usd", Destination: "acct_dest"})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "balance_insufficient", provErr.Code)
	assert.Equal(t, "Your provider balance is too low", provErr.Message)
}

func TestCreateTransferServerErrorIsNotProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "sk_test", zap.NewNop())
	_, err := client.CreateTransfer(context.Background(), Request{AmountMinor: 100, Currency: "usd", Destination: "acct_dest"})

	require.Error(t, err)
	var provErr *ProviderError
	assert.False(t, errors.As(err, &provErr))
}

func TestLookupTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transfers", r.URL.Path)
		switch r.URL.Query().Get("idempotency_key") {
		case "key-found":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "tr_7"}},
			})
		case "key-empty":
			json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "sk_test", zap.NewNop())

	id, found, err := client.LookupTransfer(context.Background(), "key-found")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tr_7", id)

	_, found, err = client.LookupTransfer(context.Background(), "key-empty")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = client.LookupTransfer(context.Background(), "key-missing")
	require.NoError(t, err)
	assert.False(t, found)
}
