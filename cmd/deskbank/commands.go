package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/deskbank/internal/app"
	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/validate"
)

type accountView struct {
	AccountNumber string    `json:"account_number"`
	Type          string    `json:"account_type"`
	Balance       string    `json:"balance"`
	OwnerID       string    `json:"owner_id"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type transactionView struct {
	ID            string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	AccountNumber string    `json:"account_number"`
	Timestamp     time.Time `json:"timestamp"`
	Description   string    `json:"description"`
	Warning       string    `json:"warning,omitempty"`
}

type userView struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"user_type"`
	IsActive bool   `json:"is_active"`
}

func viewAccount(a *app.App, acc *models.Account) accountView {
	return accountView{
		AccountNumber: acc.Number(),
		Type:          string(acc.Type()),
		Balance:       a.Config.FormatCurrency(acc.Balance()),
		OwnerID:       acc.OwnerID(),
		IsActive:      acc.IsActive(),
		CreatedAt:     acc.CreatedAt(),
	}
}

func viewTransaction(a *app.App, tx models.Transaction) transactionView {
	return transactionView{
		ID:            tx.ID(),
		Type:          string(tx.Kind()),
		Amount:        a.Config.FormatCurrency(tx.Amount()),
		AccountNumber: tx.AccountNumber(),
		Timestamp:     tx.Timestamp(),
		Description:   tx.Description(),
	}
}

// limitWarning is reported in the result, never printed, so stdout stays one
// JSON document.
func limitWarning(a *app.App, number string, amount decimal.Decimal, what string) string {
	if ok, _ := a.Ledger.CheckDailyLimit(number, amount); ok {
		return ""
	}
	return fmt.Sprintf("this %s exceeds the daily limit", what)
}

func viewUser(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email, Role: string(u.Role()), IsActive: u.IsActive}
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func required(values map[string]string) error {
	for name, v := range values {
		if v == "" {
			return fmt.Errorf("-%s is required", name)
		}
	}
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return validate.Amount(raw)
}

// owned validates the session and checks the customer owns the account.
func owned(a *app.App, token, number string) (*models.User, error) {
	user, err := a.Auth.RequireCustomer(token)
	if err != nil {
		return nil, err
	}
	if !a.Account.ValidateAccountAccess(user, number) {
		return nil, fmt.Errorf("account %s: %w", number, models.ErrPermissionDenied)
	}
	return user, nil
}

// readable lets the owner or a manager allowed to view accounts through.
func readable(a *app.App, token, number string) error {
	user, err := a.Auth.ValidateSession(token)
	if err != nil {
		return err
	}
	if user.IsManager() {
		if !a.Auth.CheckPermission(user, models.PermViewAccounts) {
			return models.ErrPermissionDenied
		}
		return nil
	}
	if !a.Account.ValidateAccountAccess(user, number) {
		return fmt.Errorf("account %s: %w", number, models.ErrPermissionDenied)
	}
	return nil
}

func manager(a *app.App, token, permission string) (*models.User, error) {
	user, err := a.Auth.RequireManager(token)
	if err != nil {
		return nil, err
	}
	if permission != "" && !a.Auth.CheckPermission(user, permission) {
		return nil, fmt.Errorf("%s: %w", permission, models.ErrPermissionDenied)
	}
	return user, nil
}

func register(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("register")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	email := fs.String("email", "", "email (optional)")
	name := fs.String("name", "", "full name (optional)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	user, err := a.User.RegisterCustomer(ctx, *username, *password, *email, *name)
	if err != nil {
		return nil, err
	}
	return viewUser(user), nil
}

func createManager(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("create-manager")
	token := fs.String("token", "", "session token")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	email := fs.String("email", "", "email (optional)")
	name := fs.String("name", "", "full name (optional)")
	employeeID := fs.String("employee-id", "", "employee id (optional)")
	department := fs.String("department", "", "department (optional)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	// The first manager can be created without a session.
	if len(a.User.Managers()) > 0 {
		if _, err := manager(a, *token, models.PermAddCustomer); err != nil {
			return nil, err
		}
	}
	user, err := a.User.CreateManager(ctx, *username, *password, *email, *name, *employeeID, *department)
	if err != nil {
		return nil, err
	}
	return viewUser(user), nil
}

func login(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("login")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	token, user, err := a.Auth.Login(ctx, *username, *password)
	if err != nil {
		return nil, err
	}
	return struct {
		Token     string    `json:"token"`
		User      userView  `json:"user"`
		ExpiresIn string    `json:"expires_in"`
		LoggedIn  time.Time `json:"logged_in"`
	}{token, viewUser(user), a.Config.SessionTTL.String(), *user.LastLogin}, nil
}

func openAccount(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("open-account")
	token := fs.String("token", "", "session token")
	kind := fs.String("type", string(models.Savings), "account type")
	initial := fs.String("initial", "", "initial deposit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	user, err := a.Auth.RequireCustomer(*token)
	if err != nil {
		return nil, err
	}
	accountType, err := models.ParseAccountType(*kind)
	if err != nil {
		return nil, err
	}
	amount := decimal.Zero
	if *initial != "" {
		if amount, err = parseAmount(*initial); err != nil {
			return nil, err
		}
	}
	account, err := a.Account.CreateAccount(ctx, user, accountType, amount)
	if err != nil {
		return nil, err
	}
	return viewAccount(a, account), nil
}

func listAccounts(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("accounts")
	token := fs.String("token", "", "session token")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	user, err := a.Auth.ValidateSession(*token)
	if err != nil {
		return nil, err
	}
	var accounts []*models.Account
	if user.IsManager() {
		if !a.Auth.CheckPermission(user, models.PermViewAccounts) {
			return nil, models.ErrPermissionDenied
		}
		accounts = a.Accounts.GetAll()
	} else {
		accounts = a.Account.CustomerAccounts(user)
	}
	out := make([]accountView, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, viewAccount(a, acc))
	}
	return out, nil
}

func moneyFlags(name string, args []string) (token, account, amount, description *string, err error) {
	fs := newFlags(name)
	token = fs.String("token", "", "session token")
	account = fs.String("account", "", "account number")
	amount = fs.String("amount", "", "amount")
	description = fs.String("description", "", "description (optional)")
	if err = fs.Parse(args); err != nil {
		return
	}
	err = required(map[string]string{"account": *account, "amount": *amount})
	return
}

func deposit(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, raw, desc, err := moneyFlags("deposit", args)
	if err != nil {
		return nil, err
	}
	if _, err := owned(a, *token, *number); err != nil {
		return nil, err
	}
	amount, err := parseAmount(*raw)
	if err != nil {
		return nil, err
	}
	if err := validate.Description(*desc); err != nil {
		return nil, err
	}
	tx, err := a.Ledger.MakeDeposit(ctx, *number, amount, *desc)
	if err != nil {
		return nil, err
	}
	return viewTransaction(a, tx), nil
}

func withdraw(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, raw, desc, err := moneyFlags("withdraw", args)
	if err != nil {
		return nil, err
	}
	if _, err := owned(a, *token, *number); err != nil {
		return nil, err
	}
	amount, err := parseAmount(*raw)
	if err != nil {
		return nil, err
	}
	if err := validate.Description(*desc); err != nil {
		return nil, err
	}
	warning := limitWarning(a, *number, amount, "withdrawal")
	tx, err := a.Ledger.MakeWithdrawal(ctx, *number, amount, *desc)
	if err != nil {
		return nil, err
	}
	view := viewTransaction(a, tx)
	view.Warning = warning
	return view, nil
}

func transfer(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("transfer")
	token := fs.String("token", "", "session token")
	from := fs.String("from", "", "source account")
	to := fs.String("to", "", "destination account")
	raw := fs.String("amount", "", "amount")
	desc := fs.String("description", "", "description (optional)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required(map[string]string{"from": *from, "to": *to, "amount": *raw}); err != nil {
		return nil, err
	}
	if err := validate.AccountNumber(*to); err != nil {
		return nil, err
	}
	if _, err := owned(a, *token, *from); err != nil {
		return nil, err
	}
	amount, err := parseAmount(*raw)
	if err != nil {
		return nil, err
	}
	if err := validate.Description(*desc); err != nil {
		return nil, err
	}
	warning := limitWarning(a, *from, amount, "transfer")
	tx, err := a.Ledger.TransferFunds(ctx, *from, *to, amount, *desc)
	if err != nil {
		return nil, err
	}
	view := viewTransaction(a, tx)
	view.Warning = warning
	return view, nil
}

func accountFlags(name string, args []string) (token, account *string, err error) {
	fs := newFlags(name)
	token = fs.String("token", "", "session token")
	account = fs.String("account", "", "account number")
	if err = fs.Parse(args); err != nil {
		return
	}
	err = required(map[string]string{"account": *account})
	return
}

func balance(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, err := accountFlags("balance", args)
	if err != nil {
		return nil, err
	}
	if err := readable(a, *token, *number); err != nil {
		return nil, err
	}
	amount, err := a.Ledger.GetAccountBalance(*number)
	if err != nil {
		return nil, err
	}
	return struct {
		AccountNumber string `json:"account_number"`
		Balance       string `json:"balance"`
	}{*number, a.Config.FormatCurrency(amount)}, nil
}

func history(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("history")
	token := fs.String("token", "", "session token")
	number := fs.String("account", "", "account number")
	limit := fs.Int("limit", 10, "number of records, 0 for all")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := readable(a, *token, *number); err != nil {
		return nil, err
	}
	txs, err := a.Ledger.GetTransactionHistory(*number, *limit)
	if err != nil {
		return nil, err
	}
	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, viewTransaction(a, tx))
	}
	return out, nil
}

func dailyLimit(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, raw, _, err := moneyFlags("daily-limit", args)
	if err != nil {
		return nil, err
	}
	if err := readable(a, *token, *number); err != nil {
		return nil, err
	}
	amount, err := parseAmount(*raw)
	if err != nil {
		return nil, err
	}
	ok, err := a.Ledger.CheckDailyLimit(*number, amount)
	if err != nil {
		return nil, err
	}
	spent, _ := a.Ledger.DailyTotal(*number)
	account, _ := a.Account.GetAccount(*number)
	return struct {
		AccountNumber string `json:"account_number"`
		WithinLimit   bool   `json:"within_limit"`
		SpentToday    string `json:"spent_today"`
		DailyLimit    string `json:"daily_limit"`
	}{*number, ok, a.Config.FormatCurrency(spent), a.Config.FormatCurrency(a.Ledger.DailyLimit(account.Type()))}, nil
}

func summary(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("summary")
	token := fs.String("token", "", "session token")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	user, err := a.Auth.RequireCustomer(*token)
	if err != nil {
		return nil, err
	}
	return a.User.CustomerSummary(user.ID)
}

func stats(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("stats")
	token := fs.String("token", "", "session token")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, models.PermSystemStatistics); err != nil {
		return nil, err
	}
	return struct {
		Statistics     any      `json:"statistics"`
		Unreconciled   []string `json:"unreconciled_accounts"`
		ActiveSessions int      `json:"active_sessions"`
	}{a.User.SystemStatistics(), a.Ledger.Unreconciled(), a.Auth.ActiveSessionCount()}, nil
}

func search(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("search")
	token := fs.String("token", "", "session token")
	term := fs.String("term", "", "username or name fragment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, models.PermViewCustomers); err != nil {
		return nil, err
	}
	found := a.User.SearchCustomers(*term)
	out := make([]userView, 0, len(found))
	for _, u := range found {
		out = append(out, viewUser(u))
	}
	return out, nil
}

func deactivateAccount(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, err := accountFlags("deactivate-account", args)
	if err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, models.PermViewAccounts); err != nil {
		return nil, err
	}
	if err := a.Account.DeactivateAccount(ctx, *number); err != nil {
		return nil, err
	}
	account, err := a.Account.GetAccount(*number)
	if err != nil {
		return nil, err
	}
	return viewAccount(a, account), nil
}

func activateAccount(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, err := accountFlags("activate-account", args)
	if err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, models.PermViewAccounts); err != nil {
		return nil, err
	}
	if err := a.Account.ActivateAccount(ctx, *number); err != nil {
		return nil, err
	}
	account, err := a.Account.GetAccount(*number)
	if err != nil {
		return nil, err
	}
	return viewAccount(a, account), nil
}

func closeAccount(ctx context.Context, a *app.App, args []string) (any, error) {
	token, number, err := accountFlags("close-account", args)
	if err != nil {
		return nil, err
	}
	if _, err := owned(a, *token, *number); err != nil {
		return nil, err
	}
	if err := a.Account.CloseAccount(ctx, *number); err != nil {
		return nil, err
	}
	account, err := a.Account.GetAccount(*number)
	if err != nil {
		return nil, err
	}
	return viewAccount(a, account), nil
}

func deleteCustomer(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("delete-customer")
	token := fs.String("token", "", "session token")
	id := fs.String("customer", "", "customer id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, models.PermRemoveCustomer); err != nil {
		return nil, err
	}
	if err := a.User.DeleteCustomer(ctx, *id); err != nil {
		return nil, err
	}
	a.Auth.LogoutUser(*id)
	return struct {
		Deleted string `json:"deleted"`
	}{*id}, nil
}

func changePassword(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("change-password")
	token := fs.String("token", "", "session token")
	oldPassword := fs.String("old", "", "current password")
	newPassword := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	user, err := a.Auth.ValidateSession(*token)
	if err != nil {
		return nil, err
	}
	if err := a.User.ChangePassword(ctx, user.ID, *oldPassword, *newPassword); err != nil {
		return nil, err
	}
	return struct {
		Changed bool `json:"changed"`
	}{true}, nil
}

func createBackup(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("backup")
	token := fs.String("token", "", "session token")
	name := fs.String("name", "", "backup name (optional)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, ""); err != nil {
		return nil, err
	}
	path, err := a.Backup(ctx, *name)
	if err != nil {
		return nil, err
	}
	return a.Backups.Verify(path), nil
}

func listBackups(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("backups")
	token := fs.String("token", "", "session token")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, ""); err != nil {
		return nil, err
	}
	return a.Backups.List()
}

func verifyBackup(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("verify-backup")
	token := fs.String("token", "", "session token")
	path := fs.String("file", "", "backup file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, ""); err != nil {
		return nil, err
	}
	return a.Backups.Verify(*path), nil
}

func restoreBackup(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := newFlags("restore")
	token := fs.String("token", "", "session token")
	path := fs.String("file", "", "backup file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := manager(a, *token, ""); err != nil {
		return nil, err
	}
	if err := a.Restore(ctx, *path); err != nil {
		return nil, err
	}
	return struct {
		Restored string `json:"restored"`
		Users    int    `json:"users"`
		Accounts int    `json:"accounts"`
	}{*path, a.Users.Count(), a.Accounts.Count()}, nil
}
