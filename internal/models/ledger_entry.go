package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is the signed view of one Transaction on one account.
type LedgerEntry struct {
	ID        string          // transaction id
	AccountID string          // account the entry belongs to
	Amount    decimal.Decimal // positive for credits, negative for debits
	CreatedAt time.Time
}

// EntriesFor converts records into signed entries, in the same order.
func EntriesFor(txs []Transaction) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, LedgerEntry{
			ID:        tx.ID(),
			AccountID: tx.AccountNumber(),
			Amount:    tx.Delta(),
			CreatedAt: tx.Timestamp(),
		})
	}
	return entries
}

// SumEntries folds entries into a balance.
func SumEntries(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	return balance
}
