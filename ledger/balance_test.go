package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kestrelpay/payout-api/models"
)

func tx(typ models.TransactionType, from, to string, amount int64) models.Transaction {
	return models.Transaction{
		ID:     uuid.New(),
		Type:   typ,
		From:   from,
		To:     to,
		Amount: decimal.NewFromInt(amount),
		Status: models.StatusConfirmed,
		Date:   time.Now(),
	}
}

func TestComputeBalanceEmptyLog(t *testing.T) {
	assert.True(t, ComputeBalance("u1", nil).IsZero())
	assert.True(t, ComputeBalance("u1", []models.Transaction{}).IsZero())
}

func TestComputeBalanceMixedHistory(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TypeOnramp, "", "u1", 500),
		tx(models.TypeOnramp, "", "u2", 300),
		tx(models.TypeTransfer, "u1", "u2", 150),
		tx(models.TypeOfframp, "u2", "sink", 100),
	}

	assert.Equal(t, "350", ComputeBalance("u1", txs).String())
	assert.Equal(t, "350", ComputeBalance("u2", txs).String())
	// Accounts with no history stay at zero.
	assert.True(t, ComputeBalance("u3", txs).IsZero())
}

func TestComputeBalanceOrderIndependent(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TypeOnramp, "", "u1", 500),
		tx(models.TypeTransfer, "u1", "u2", 120),
		tx(models.TypeOfframp, "u1", "sink", 75),
		tx(models.TypeTransfer, "u2", "u1", 30),
		tx(models.TypeOnramp, "", "u1", 42),
	}
	want := ComputeBalance("u1", txs)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := make([]models.Transaction, len(txs))
		copy(shuffled, txs)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.True(t, want.Equal(ComputeBalance("u1", shuffled)))
	}
}

func TestComputeBalanceSelfTransferNetsToZero(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TypeOnramp, "", "u1", 200),
		tx(models.TypeTransfer, "u1", "u1", 50),
	}
	assert.Equal(t, "200", ComputeBalance("u1", txs).String())
}

func TestComputeBalanceIgnoresUnknownTypes(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TypeOnramp, "", "u1", 100),
		tx(models.TransactionType("adjustment"), "u1", "u1", 999),
		tx(models.TransactionType(""), "", "u1", 999),
	}
	assert.Equal(t, "100", ComputeBalance("u1", txs).String())
}

func TestComputeBalanceCanGoNegative(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TypeOfframp, "u1", "sink", 40),
	}
	assert.Equal(t, "-40", ComputeBalance("u1", txs).String())
}

func TestComputeBalancePendingDebitsCount(t *testing.T) {
	pending := tx(models.TypeOfframp, "u1", "sink", 60)
	pending.Status = models.StatusPending
	txs := []models.Transaction{
		tx(models.TypeOnramp, "", "u1", 100),
		pending,
	}
	assert.Equal(t, "40", ComputeBalance("u1", txs).String())
}

func TestComputeBalanceSkipsFailedEntries(t *testing.T) {
	failed := tx(models.TypeOfframp, "u1", "sink", 60)
	failed.Status = models.StatusFailed
	txs := []models.Transaction{
		tx(models.TypeOnramp, "", "u1", 100),
		failed,
	}
	assert.Equal(t, "100", ComputeBalance("u1", txs).String())
}
