package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit     TransactionKind = "Deposit"
	KindWithdrawal  TransactionKind = "Withdrawal"
	KindTransferOut TransactionKind = "Transfer Out"
	KindTransferIn  TransactionKind = "Transfer In"
)

// Valid reports whether k is one of the four known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransferOut, KindTransferIn:
		return true
	}
	return false
}

// Outgoing reports whether the kind debits the account.
func (k TransactionKind) Outgoing() bool {
	return k == KindWithdrawal || k == KindTransferOut
}

// Transaction is an immutable ledger record. All fields are read through accessors.
type Transaction struct {
	id            string
	kind          TransactionKind
	amount        decimal.Decimal
	accountNumber string
	timestamp     time.Time
	description   string
}

// NewTransaction creates a record with a fresh id. An empty description is
// replaced by "<kind> of $<amount>".
func NewTransaction(kind TransactionKind, amount decimal.Decimal, accountNumber, description string, at time.Time) Transaction {
	amount = Normalize(amount)
	if description == "" {
		description = fmt.Sprintf("%s of $%s", kind, amount.StringFixed(Cents))
	}
	return Transaction{
		id:            uuid.New().String(),
		kind:          kind,
		amount:        amount,
		accountNumber: accountNumber,
		timestamp:     at,
		description:   description,
	}
}

func (t Transaction) ID() string              { return t.id }
func (t Transaction) Kind() TransactionKind   { return t.kind }
func (t Transaction) Amount() decimal.Decimal { return t.amount }
func (t Transaction) AccountNumber() string   { return t.accountNumber }
func (t Transaction) Timestamp() time.Time    { return t.timestamp }
func (t Transaction) Description() string     { return t.description }

// Delta is the signed effect of the record on its account balance.
func (t Transaction) Delta() decimal.Decimal {
	if t.kind.Outgoing() {
		return t.amount.Neg()
	}
	return t.amount
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s: $%s - %s", t.kind, t.amount.StringFixed(Cents), t.description)
}

// TransactionRecord is the persisted form of a Transaction.
type TransactionRecord struct {
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	AccountNumber string    `json:"account_number"`
	Description   string    `json:"description"`
}

func (t Transaction) ToRecord() TransactionRecord {
	return TransactionRecord{
		TransactionID: t.id,
		Type:          string(t.kind),
		Amount:        toFloat(t.amount),
		Timestamp:     t.timestamp,
		AccountNumber: t.accountNumber,
		Description:   t.description,
	}
}

// TransactionFromRecord rebuilds a Transaction, keeping its original id.
func TransactionFromRecord(r TransactionRecord) (Transaction, error) {
	kind := TransactionKind(r.Type)
	if !kind.Valid() {
		return Transaction{}, fmt.Errorf("transaction %s: unknown type %q", r.TransactionID, r.Type)
	}
	if r.TransactionID == "" {
		return Transaction{}, fmt.Errorf("transaction without id on account %s", r.AccountNumber)
	}
	return Transaction{
		id:            r.TransactionID,
		kind:          kind,
		amount:        fromFloat(r.Amount),
		accountNumber: r.AccountNumber,
		timestamp:     r.Timestamp,
		description:   r.Description,
	}, nil
}
