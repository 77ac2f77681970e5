package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicTransactionCompleted = "transaction_completed"

// TransactionCompleted is published once a money movement has been committed.
// FromAccount is empty for deposits and ToAccount is empty for withdrawals.
type TransactionCompleted struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// AccountKey is the account whose history the event extends first.
func (e TransactionCompleted) AccountKey() string {
	if e.FromAccount != "" {
		return e.FromAccount
	}
	return e.ToAccount
}
