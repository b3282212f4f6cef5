// Package ledger derives account balances by replaying the transaction log
// and persists new entries. The log is the single source of truth: no stored
// balance is ever trusted by the authorization path.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/kestrelpay/payout-api/models"
)

// ComputeBalance replays the full transaction set and returns the balance of
// accountID. The result does not depend on the order of txs.
//
// Onramps credit To, offramps debit From, transfers do both checks
// independently (a self-transfer nets to zero without special-casing).
// Unknown transaction types contribute nothing. Failed offramp intents are
// skipped; pending ones still count as debits so an in-flight payout reserves
// its funds. The result can go negative if the log is over-debited, which the
// payout path must guard against.
func ComputeBalance(accountID string, txs []models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range txs {
		if t.Status == models.StatusFailed {
			continue
		}
		switch t.Type {
		case models.TypeOnramp:
			if t.To == accountID {
				balance = balance.Add(t.Amount)
			}
		case models.TypeOfframp:
			if t.From == accountID {
				balance = balance.Sub(t.Amount)
			}
		case models.TypeTransfer:
			if t.To == accountID {
				balance = balance.Add(t.Amount)
			}
			if t.From == accountID {
				balance = balance.Sub(t.Amount)
			}
		}
	}
	return balance
}
