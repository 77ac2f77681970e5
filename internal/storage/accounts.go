package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
	"github.com/sheikh-saqib/deskbank/internal/models"
)

// AccountRepository stores accounts keyed by account number.
type AccountRepository struct {
	*Repository[*models.Account, models.AccountRecord]
}

func NewAccountRepository(store interfaces.SnapshotStore) *AccountRepository {
	return &AccountRepository{
		Repository: NewRepository("accounts", store, Codec[*models.Account, models.AccountRecord]{
			Key:    func(a *models.Account) string { return a.Number() },
			Encode: func(a *models.Account) models.AccountRecord { return a.ToRecord() },
			Decode: models.AccountFromRecord,
		}),
	}
}

// CreateAccount opens an account for ownerID. A positive initial balance is
// recorded as an "Initial deposit" so the ledger explains the balance.
func (r *AccountRepository) CreateAccount(ctx context.Context, ownerID string, accountType models.AccountType, initial decimal.Decimal) (*models.Account, error) {
	var account *models.Account
	err := r.Modify(ctx, func(tx *Tx[*models.Account]) error {
		account = models.NewAccount(ownerID, accountType)
		for {
			if _, taken := tx.Get(account.Number()); !taken {
				break
			}
			account = models.NewAccount(ownerID, accountType)
		}
		if models.IsPositive(initial) {
			if _, err := account.Deposit(initial, "Initial deposit"); err != nil {
				return err
			}
		}
		tx.Put(account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ByOwner returns the owner's accounts ordered by creation time.
func (r *AccountRepository) ByOwner(ownerID string) []*models.Account {
	return sorted(r.Find(func(a *models.Account) bool { return a.OwnerID() == ownerID }))
}

func (r *AccountRepository) ByType(accountType models.AccountType) []*models.Account {
	return sorted(r.Find(func(a *models.Account) bool { return a.Type() == accountType }))
}

func (r *AccountRepository) Active() []*models.Account {
	return sorted(r.Find(func(a *models.Account) bool { return a.IsActive() }))
}

func (r *AccountRepository) Inactive() []*models.Account {
	return sorted(r.Find(func(a *models.Account) bool { return !a.IsActive() }))
}

// BalanceAtLeast returns accounts whose balance is >= threshold.
func (r *AccountRepository) BalanceAtLeast(threshold decimal.Decimal) []*models.Account {
	return sorted(r.Find(func(a *models.Account) bool { return a.Balance().GreaterThanOrEqual(threshold) }))
}

// BalanceAtMost returns accounts whose balance is <= threshold.
func (r *AccountRepository) BalanceAtMost(threshold decimal.Decimal) []*models.Account {
	return sorted(r.Find(func(a *models.Account) bool { return a.Balance().LessThanOrEqual(threshold) }))
}

func (r *AccountRepository) TotalBalance() decimal.Decimal {
	return sum(r.GetAll())
}

func (r *AccountRepository) TotalBalanceByType(accountType models.AccountType) decimal.Decimal {
	return sum(r.Find(func(a *models.Account) bool { return a.Type() == accountType }))
}

func (r *AccountRepository) TotalBalanceByOwner(ownerID string) decimal.Decimal {
	return sum(r.Find(func(a *models.Account) bool { return a.OwnerID() == ownerID }))
}

func (r *AccountRepository) DeactivateAccount(ctx context.Context, number string) error {
	return r.setActive(ctx, number, false)
}

func (r *AccountRepository) ActivateAccount(ctx context.Context, number string) error {
	return r.setActive(ctx, number, true)
}

func (r *AccountRepository) setActive(ctx context.Context, number string, active bool) error {
	return r.Modify(ctx, func(tx *Tx[*models.Account]) error {
		account, ok := tx.Get(number)
		if !ok {
			return fmt.Errorf("account %s: %w", number, models.ErrAccountNotFound)
		}
		if active {
			account.Activate()
		} else {
			account.Deactivate()
		}
		tx.Touch()
		return nil
	})
}

// TransferOwnership reassigns the account without touching its balance.
func (r *AccountRepository) TransferOwnership(ctx context.Context, number, newOwnerID string) error {
	return r.Modify(ctx, func(tx *Tx[*models.Account]) error {
		account, ok := tx.Get(number)
		if !ok {
			return fmt.Errorf("account %s: %w", number, models.ErrAccountNotFound)
		}
		account.SetOwner(newOwnerID)
		tx.Touch()
		return nil
	})
}

func sorted(accounts []*models.Account) []*models.Account {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt().Equal(accounts[j].CreatedAt()) {
			return accounts[i].Number() < accounts[j].Number()
		}
		return accounts[i].CreatedAt().Before(accounts[j].CreatedAt())
	})
	return accounts
}

func sum(accounts []*models.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance())
	}
	return total
}
