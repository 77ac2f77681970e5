package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/models/events"
	"github.com/sheikh-saqib/deskbank/internal/storage"
)

// Policy supplies per account type limits.
type Policy interface {
	DailyLimit(models.AccountType) decimal.Decimal
	MinimumBalance(models.AccountType) decimal.Decimal
}

// Ledger moves money between accounts held in the account repository.
// Every movement runs inside one repository critical section and is
// published as a TransactionCompleted event once committed.
type Ledger struct {
	accounts     *storage.AccountRepository
	publisher    interfaces.EventPublisher
	policy       Policy
	topic        string
	enforceLimit bool
	now          func() time.Time
}

type Option func(*Ledger)

// WithClock sets the clock that decides what "today" is for daily limits.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithDailyLimitEnforcement makes withdrawals and transfers fail with
// ErrDailyLimitExceeded instead of leaving the check to callers.
func WithDailyLimitEnforcement(enforce bool) Option {
	return func(l *Ledger) { l.enforceLimit = enforce }
}

func WithTopic(topic string) Option {
	return func(l *Ledger) { l.topic = topic }
}

// NewLedger is a constructor function that creates a new Ledger instance.
// publisher may be nil, in which case no events are sent.
func NewLedger(accounts *storage.AccountRepository, publisher interfaces.EventPublisher, policy Policy, opts ...Option) *Ledger {
	l := &Ledger{
		accounts:  accounts,
		publisher: publisher,
		policy:    policy,
		topic:     events.TopicTransactionCompleted,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MakeDeposit credits the account.
func (l *Ledger) MakeDeposit(ctx context.Context, accountNumber string, amount decimal.Decimal, description string) (models.Transaction, error) {
	var rec models.Transaction
	err := l.accounts.Modify(ctx, func(tx *storage.Tx[*models.Account]) error {
		account, err := activeAccount(tx, accountNumber)
		if err != nil {
			return err
		}
		if rec, err = account.Deposit(amount, description); err != nil {
			return err
		}
		tx.Touch()
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	l.publish(ctx, rec, "", accountNumber)
	return rec, nil
}

// MakeWithdrawal debits the account.
func (l *Ledger) MakeWithdrawal(ctx context.Context, accountNumber string, amount decimal.Decimal, description string) (models.Transaction, error) {
	var rec models.Transaction
	err := l.accounts.Modify(ctx, func(tx *storage.Tx[*models.Account]) error {
		account, err := activeAccount(tx, accountNumber)
		if err != nil {
			return err
		}
		if err := l.enforceDailyLimit(account, amount); err != nil {
			return err
		}
		if rec, err = account.Withdraw(amount, description); err != nil {
			return err
		}
		tx.Touch()
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	l.publish(ctx, rec, accountNumber, "")
	return rec, nil
}

// TransferFunds moves amount from one account to another. Both sides are
// saved in the same snapshot. The Transfer Out record is returned.
func (l *Ledger) TransferFunds(ctx context.Context, from, to string, amount decimal.Decimal, description string) (models.Transaction, error) {
	if from == to {
		return models.Transaction{}, fmt.Errorf("transfer %s -> %s: %w", from, to, models.ErrSameAccount)
	}

	var rec models.Transaction
	err := l.accounts.Modify(ctx, func(tx *storage.Tx[*models.Account]) error {
		source, ok := tx.Get(from)
		if !ok {
			return fmt.Errorf("source account %s: %w", from, models.ErrAccountNotFound)
		}
		target, ok := tx.Get(to)
		if !ok {
			return fmt.Errorf("destination account %s: %w", to, models.ErrAccountNotFound)
		}
		if !source.IsActive() {
			return fmt.Errorf("source account %s: %w", from, models.ErrInactiveAccount)
		}
		if !target.IsActive() {
			return fmt.Errorf("destination account %s: %w", to, models.ErrInactiveAccount)
		}
		if err := l.enforceDailyLimit(source, amount); err != nil {
			return err
		}

		var err error
		if rec, err = source.TransferTo(target, amount, description); err != nil {
			return err
		}
		tx.Touch()
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	l.publish(ctx, rec, from, to)
	return rec, nil
}

// CheckDailyLimit reports whether amount fits in what is left of today's
// limit for withdrawals and outgoing transfers. It does not move money.
func (l *Ledger) CheckDailyLimit(accountNumber string, amount decimal.Decimal) (bool, error) {
	account, ok := l.accounts.GetByID(accountNumber)
	if !ok {
		return false, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	return l.withinDailyLimit(account, amount), nil
}

// DailyTotal is the sum of today's withdrawals and outgoing transfers.
func (l *Ledger) DailyTotal(accountNumber string) (decimal.Decimal, error) {
	account, ok := l.accounts.GetByID(accountNumber)
	if !ok {
		return decimal.Zero, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	return l.spentToday(account), nil
}

func (l *Ledger) DailyLimit(accountType models.AccountType) decimal.Decimal {
	return l.policy.DailyLimit(accountType)
}

func (l *Ledger) withinDailyLimit(account *models.Account, amount decimal.Decimal) bool {
	total := l.spentToday(account).Add(models.Normalize(amount))
	return total.LessThanOrEqual(l.policy.DailyLimit(account.Type()))
}

func (l *Ledger) spentToday(account *models.Account) decimal.Decimal {
	y, m, d := l.now().Date()
	total := decimal.Zero
	for _, rec := range account.TransactionHistory(0) {
		ty, tm, td := rec.Timestamp().In(l.now().Location()).Date()
		if ty == y && tm == m && td == d && rec.Kind().Outgoing() {
			total = total.Add(rec.Amount())
		}
	}
	return total
}

func (l *Ledger) enforceDailyLimit(account *models.Account, amount decimal.Decimal) error {
	if !l.enforceLimit || l.withinDailyLimit(account, amount) {
		return nil
	}
	return fmt.Errorf("account %s limit $%s: %w",
		account.Number(), l.policy.DailyLimit(account.Type()).StringFixed(models.Cents), models.ErrDailyLimitExceeded)
}

// GetTransactionHistory returns up to limit records, newest first.
func (l *Ledger) GetTransactionHistory(accountNumber string, limit int) ([]models.Transaction, error) {
	account, ok := l.accounts.GetByID(accountNumber)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	return account.TransactionHistory(limit), nil
}

func (l *Ledger) GetAccountBalance(accountNumber string) (decimal.Decimal, error) {
	account, ok := l.accounts.GetByID(accountNumber)
	if !ok {
		return decimal.Zero, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	return account.Balance(), nil
}

// GetLedgerEntries returns the signed entries of an account, oldest first.
func (l *Ledger) GetLedgerEntries(accountNumber string) ([]models.LedgerEntry, error) {
	account, ok := l.accounts.GetByID(accountNumber)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	return account.Ledger(), nil
}

// Unreconciled lists accounts whose balance differs from the sum of their
// ledger entries.
func (l *Ledger) Unreconciled() []string {
	var out []string
	for _, account := range l.accounts.GetAll() {
		if !account.Reconciles() {
			out = append(out, account.Number())
		}
	}
	return out
}

// ValidateTransferAmount accepts positive amounts with at most two decimals.
func (l *Ledger) ValidateTransferAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(models.Cents))
}

// TransferFee is charged on top of a transfer. No account type carries a fee.
func (l *Ledger) TransferFee(amount decimal.Decimal, accountType models.AccountType) decimal.Decimal {
	return decimal.Zero
}

func activeAccount(tx *storage.Tx[*models.Account], accountNumber string) (*models.Account, error) {
	account, ok := tx.Get(accountNumber)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrInactiveAccount)
	}
	return account, nil
}

func (l *Ledger) publish(ctx context.Context, rec models.Transaction, from, to string) {
	if l.publisher == nil {
		return
	}
	event := events.TransactionCompleted{
		TransactionID: rec.ID(),
		Type:          string(rec.Kind()),
		FromAccount:   from,
		ToAccount:     to,
		Amount:        rec.Amount(),
		Description:   rec.Description(),
		OccurredAt:    rec.Timestamp(),
	}
	if err := l.publisher.Publish(ctx, l.topic, event); err != nil {
		log.Printf("events: publish %s for %s failed: %v", l.topic, rec.ID(), err)
	}
}
