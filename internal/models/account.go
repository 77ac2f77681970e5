package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Savings  AccountType = "Savings"
	Checking AccountType = "Checking"
	Business AccountType = "Business"
)

// AccountTypes lists the supported account types in display order.
var AccountTypes = []AccountType{Savings, Checking, Business}

func ParseAccountType(s string) (AccountType, error) {
	for _, t := range AccountTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
}

// now is the clock used for new records.
var now = time.Now

// NewAccountNumber returns eight upper-case hex characters taken from a UUIDv4.
func NewAccountNumber() string {
	return strings.ToUpper(uuid.New().String()[:8])
}

// Account owns a balance and the append-only list of records that produced it.
// Balance only changes through Deposit, Withdraw and TransferTo.
type Account struct {
	mu           sync.RWMutex
	number       string
	balance      decimal.Decimal
	accountType  AccountType
	ownerID      string
	active       bool
	createdAt    time.Time
	transactions []Transaction
}

// NewAccount creates an active, empty account for the given owner.
func NewAccount(ownerID string, accountType AccountType) *Account {
	return &Account{
		number:      NewAccountNumber(),
		balance:     decimal.Zero,
		accountType: accountType,
		ownerID:     ownerID,
		active:      true,
		createdAt:   now(),
	}
}

func (a *Account) ID() string { return a.number }

func (a *Account) Number() string { return a.number }

func (a *Account) Type() AccountType { return a.accountType }

func (a *Account) CreatedAt() time.Time { return a.createdAt }

func (a *Account) Balance() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

func (a *Account) OwnerID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ownerID
}

// SetOwner reassigns the account. Only the repository's ownership transfer calls it.
func (a *Account) SetOwner(ownerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ownerID = ownerID
}

func (a *Account) IsActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

func (a *Account) Activate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = true
}

func (a *Account) Deactivate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
}

// Deposit adds amount to the balance and records a Deposit.
func (a *Account) Deposit(amount decimal.Decimal, description string) (Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return Transaction{}, fmt.Errorf("deposit to %s: %w", a.number, ErrInactiveAccount)
	}
	amount = Normalize(amount)
	if !IsPositive(amount) {
		return Transaction{}, fmt.Errorf("deposit to %s: %w", a.number, ErrInvalidAmount)
	}
	a.balance = a.balance.Add(amount)
	return a.record(KindDeposit, amount, description), nil
}

// Withdraw removes amount from the balance and records a Withdrawal.
func (a *Account) Withdraw(amount decimal.Decimal, description string) (Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return Transaction{}, fmt.Errorf("withdraw from %s: %w", a.number, ErrInactiveAccount)
	}
	amount = Normalize(amount)
	if !IsPositive(amount) {
		return Transaction{}, fmt.Errorf("withdraw from %s: %w", a.number, ErrInvalidAmount)
	}
	if a.balance.LessThan(amount) {
		return Transaction{}, fmt.Errorf("withdraw from %s: available $%s: %w", a.number, a.balance.StringFixed(Cents), ErrInsufficientFunds)
	}
	a.balance = a.balance.Sub(amount)
	return a.record(KindWithdrawal, amount, description), nil
}

// TransferTo moves amount to target as one step: both accounts are locked,
// ordered by account number, for the debit and the credit. It returns the
// Transfer Out record.
func (a *Account) TransferTo(target *Account, amount decimal.Decimal, description string) (Transaction, error) {
	if target == nil {
		return Transaction{}, fmt.Errorf("transfer from %s: %w", a.number, ErrAccountNotFound)
	}
	if target == a || target.number == a.number {
		return Transaction{}, fmt.Errorf("transfer from %s: %w", a.number, ErrSameAccount)
	}

	// Lock in order to avoid deadlocks
	first, second := a, target
	if target.number < a.number {
		first, second = target, a
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if !a.active || !target.active {
		return Transaction{}, fmt.Errorf("transfer %s -> %s: %w", a.number, target.number, ErrInactiveAccount)
	}
	amount = Normalize(amount)
	if !IsPositive(amount) {
		return Transaction{}, fmt.Errorf("transfer %s -> %s: %w", a.number, target.number, ErrInvalidAmount)
	}
	if a.balance.LessThan(amount) {
		return Transaction{}, fmt.Errorf("transfer %s -> %s: available $%s: %w", a.number, target.number, a.balance.StringFixed(Cents), ErrInsufficientFunds)
	}

	outDesc, inDesc := description, description
	if description == "" {
		outDesc = "Transfer to " + target.number
		inDesc = "Transfer from " + a.number
	}

	a.balance = a.balance.Sub(amount)
	out := a.record(KindTransferOut, amount, outDesc)
	target.balance = target.balance.Add(amount)
	target.record(KindTransferIn, amount, inDesc)
	return out, nil
}

// record appends a new Transaction. Callers hold a.mu.
func (a *Account) record(kind TransactionKind, amount decimal.Decimal, description string) Transaction {
	at := now()
	if n := len(a.transactions); n > 0 {
		if last := a.transactions[n-1].timestamp; at.Before(last) {
			at = last
		}
	}
	tx := NewTransaction(kind, amount, a.number, description, at)
	a.transactions = append(a.transactions, tx)
	return tx
}

// TransactionHistory returns up to limit records, newest first. A limit of
// zero or less returns every record.
func (a *Account) TransactionHistory(limit int) []Transaction {
	a.mu.RLock()
	out := make([]Transaction, 0, len(a.transactions))
	for i := len(a.transactions) - 1; i >= 0; i-- {
		out = append(out, a.transactions[i])
	}
	a.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].timestamp.After(out[j].timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (a *Account) TransactionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.transactions)
}

// Ledger returns the signed entries of the account in insertion order.
func (a *Account) Ledger() []LedgerEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return EntriesFor(a.transactions)
}

// Reconciles reports whether the balance equals the sum of the ledger.
func (a *Account) Reconciles() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return SumEntries(EntriesFor(a.transactions)).Equal(a.balance)
}

func (a *Account) String() string {
	return fmt.Sprintf("%s Account %s: $%s", a.accountType, a.number, a.Balance().StringFixed(Cents))
}

// AccountRecord is the persisted form of an Account.
type AccountRecord struct {
	AccountNumber string              `json:"account_number"`
	Balance       float64             `json:"balance"`
	AccountType   string              `json:"account_type"`
	OwnerID       string              `json:"owner_id"`
	IsActive      bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	Transactions  []TransactionRecord `json:"transactions"`
}

func (a *Account) ToRecord() AccountRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	txs := make([]TransactionRecord, 0, len(a.transactions))
	for _, tx := range a.transactions {
		txs = append(txs, tx.ToRecord())
	}
	return AccountRecord{
		AccountNumber: a.number,
		Balance:       toFloat(a.balance),
		AccountType:   string(a.accountType),
		OwnerID:       a.ownerID,
		IsActive:      a.active,
		CreatedAt:     a.createdAt,
		Transactions:  txs,
	}
}

// AccountFromRecord rebuilds an Account with its persisted number and history.
func AccountFromRecord(r AccountRecord) (*Account, error) {
	if r.AccountNumber == "" {
		return nil, fmt.Errorf("account record without account number")
	}
	accountType, err := ParseAccountType(r.AccountType)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", r.AccountNumber, err)
	}
	txs := make([]Transaction, 0, len(r.Transactions))
	for _, tr := range r.Transactions {
		tx, err := TransactionFromRecord(tr)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", r.AccountNumber, err)
		}
		txs = append(txs, tx)
	}
	return &Account{
		number:       r.AccountNumber,
		balance:      fromFloat(r.Balance),
		accountType:  accountType,
		ownerID:      r.OwnerID,
		active:       r.IsActive,
		createdAt:    r.CreatedAt,
		transactions: txs,
	}, nil
}
