package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/deskbank/internal/ledger"
	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/storage"
)

// AccountService opens, queries and administers accounts.
type AccountService struct {
	accounts *storage.AccountRepository
	users    *storage.UserRepository
	policy   ledger.Policy
}

func NewAccountService(accounts *storage.AccountRepository, users *storage.UserRepository, policy ledger.Policy) *AccountService {
	return &AccountService{accounts: accounts, users: users, policy: policy}
}

// CreateAccount opens an account for an active customer. The owner's
// status is read from the repository, not from the passed user. The initial
// balance must cover the minimum balance of the account type.
func (s *AccountService) CreateAccount(ctx context.Context, owner *models.User, accountType models.AccountType, initial decimal.Decimal) (*models.Account, error) {
	current, ok := s.users.GetByID(owner.ID)
	if !ok {
		return nil, fmt.Errorf("owner %s: %w", owner.ID, models.ErrUserNotFound)
	}
	owner = current
	if _, err := owner.RequireCustomer(); err != nil {
		return nil, err
	}
	if !owner.IsActive {
		return nil, fmt.Errorf("customer %s: %w", owner.Username, models.ErrInactiveUser)
	}
	if _, err := models.ParseAccountType(string(accountType)); err != nil {
		return nil, err
	}
	initial = models.Normalize(initial)
	if initial.IsNegative() {
		return nil, fmt.Errorf("initial deposit: %w", models.ErrInvalidAmount)
	}
	if minimum := s.policy.MinimumBalance(accountType); initial.LessThan(minimum) {
		return nil, fmt.Errorf("initial deposit $%s, %s minimum $%s: %w",
			initial.StringFixed(models.Cents), accountType, minimum.StringFixed(models.Cents), models.ErrBelowMinimumBalance)
	}
	return s.accounts.CreateAccount(ctx, owner.ID, accountType, initial)
}

// CustomerAccounts is derived from the owner index on every call.
func (s *AccountService) CustomerAccounts(customer *models.User) []*models.Account {
	return s.accounts.ByOwner(customer.ID)
}

func (s *AccountService) GetAccount(accountNumber string) (*models.Account, error) {
	account, ok := s.accounts.GetByID(accountNumber)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
	}
	return account, nil
}

func (s *AccountService) GetAccountBalance(accountNumber string) (decimal.Decimal, error) {
	account, err := s.GetAccount(accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance(), nil
}

func (s *AccountService) AccountsByType(accountType models.AccountType) []*models.Account {
	return s.accounts.ByType(accountType)
}

func (s *AccountService) ActiveAccounts() []*models.Account {
	return s.accounts.Active()
}

func (s *AccountService) InactiveAccounts() []*models.Account {
	return s.accounts.Inactive()
}

func (s *AccountService) DeactivateAccount(ctx context.Context, accountNumber string) error {
	return s.accounts.DeactivateAccount(ctx, accountNumber)
}

func (s *AccountService) ActivateAccount(ctx context.Context, accountNumber string) error {
	return s.accounts.ActivateAccount(ctx, accountNumber)
}

// CloseAccount deactivates an account whose balance is exactly zero.
func (s *AccountService) CloseAccount(ctx context.Context, accountNumber string) error {
	return s.accounts.Modify(ctx, func(tx *storage.Tx[*models.Account]) error {
		account, ok := tx.Get(accountNumber)
		if !ok {
			return fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountNotFound)
		}
		if balance := account.Balance(); !balance.IsZero() {
			return fmt.Errorf("close %s with balance $%s: %w", accountNumber, balance.StringFixed(models.Cents), models.ErrNonZeroBalance)
		}
		account.Deactivate()
		tx.Touch()
		return nil
	})
}

// TransferOwnership hands the account to another customer.
func (s *AccountService) TransferOwnership(ctx context.Context, accountNumber string, newOwner *models.User) error {
	if _, err := newOwner.RequireCustomer(); err != nil {
		return err
	}
	if _, ok := s.users.GetByID(newOwner.ID); !ok {
		return fmt.Errorf("new owner %s: %w", newOwner.ID, models.ErrUserNotFound)
	}
	return s.accounts.TransferOwnership(ctx, accountNumber, newOwner.ID)
}

// ValidateAccountAccess reports whether the account exists and belongs to the customer.
func (s *AccountService) ValidateAccountAccess(customer *models.User, accountNumber string) bool {
	account, ok := s.accounts.GetByID(accountNumber)
	return ok && account.OwnerID() == customer.ID
}

func (s *AccountService) MinimumBalance(accountType models.AccountType) decimal.Decimal {
	return s.policy.MinimumBalance(accountType)
}

// CheckMinimumBalance reports whether the account holds at least its type minimum.
func (s *AccountService) CheckMinimumBalance(accountNumber string) (bool, error) {
	account, err := s.GetAccount(accountNumber)
	if err != nil {
		return false, err
	}
	return account.Balance().GreaterThanOrEqual(s.policy.MinimumBalance(account.Type())), nil
}

type AccountLine struct {
	AccountNumber    string          `json:"account_number"`
	Type             string          `json:"type"`
	Balance          decimal.Decimal `json:"balance"`
	IsActive         bool            `json:"is_active"`
	TransactionCount int             `json:"transaction_count"`
}

type AccountSummary struct {
	TotalAccounts    int             `json:"total_accounts"`
	ActiveAccounts   int             `json:"active_accounts"`
	InactiveAccounts int             `json:"inactive_accounts"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	AccountTypes     map[string]int  `json:"account_types"`
	Accounts         []AccountLine   `json:"accounts"`
}

// AccountSummary aggregates the customer's accounts.
func (s *AccountService) AccountSummary(customer *models.User) AccountSummary {
	accounts := s.accounts.ByOwner(customer.ID)
	summary := AccountSummary{
		TotalAccounts: len(accounts),
		TotalBalance:  decimal.Zero,
		AccountTypes:  make(map[string]int),
		Accounts:      lines(accounts),
	}
	for _, a := range accounts {
		if a.IsActive() {
			summary.ActiveAccounts++
		} else {
			summary.InactiveAccounts++
		}
		summary.TotalBalance = summary.TotalBalance.Add(a.Balance())
		summary.AccountTypes[string(a.Type())]++
	}
	return summary
}

func lines(accounts []*models.Account) []AccountLine {
	out := make([]AccountLine, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountLine{
			AccountNumber:    a.Number(),
			Type:             string(a.Type()),
			Balance:          a.Balance(),
			IsActive:         a.IsActive(),
			TransactionCount: a.TransactionCount(),
		})
	}
	return out
}
