package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/deskbank/internal/auth"
	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/storage"
	"github.com/sheikh-saqib/deskbank/internal/validate"
)

// UserService registers and administers customers and managers.
type UserService struct {
	users             *storage.UserRepository
	accounts          *storage.AccountRepository
	passwordMinLength int
}

func NewUserService(users *storage.UserRepository, accounts *storage.AccountRepository, passwordMinLength int) *UserService {
	return &UserService{users: users, accounts: accounts, passwordMinLength: passwordMinLength}
}

func (s *UserService) checkIdentity(username, password, email, fullName string) error {
	if err := validate.Username(username); err != nil {
		return err
	}
	if err := validate.Password(password, s.passwordMinLength); err != nil {
		return err
	}
	if err := validate.Email(email); err != nil {
		return err
	}
	return validate.FullName(fullName)
}

// RegisterCustomer creates a customer with a unique username and email.
func (s *UserService) RegisterCustomer(ctx context.Context, username, password, email, fullName string) (*models.User, error) {
	if err := s.checkIdentity(username, password, email, fullName); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.NewCustomer(username, hash, email, fullName)
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateManager creates a manager with the default permissions.
func (s *UserService) CreateManager(ctx context.Context, username, password, email, fullName, employeeID, department string) (*models.User, error) {
	if err := s.checkIdentity(username, password, email, fullName); err != nil {
		return nil, err
	}
	if employeeID != "" {
		if err := validate.EmployeeID(employeeID); err != nil {
			return nil, err
		}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.NewManager(username, hash, email, fullName, employeeID, department)
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByID(id string) (*models.User, error) {
	user, ok := s.users.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) GetUserByUsername(username string) (*models.User, error) {
	user, ok := s.users.ByUsername(username)
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, models.ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) Customers() []*models.User { return s.users.Customers() }

func (s *UserService) Managers() []*models.User { return s.users.Managers() }

func (s *UserService) ActiveUsers() []*models.User { return s.users.ActiveUsers() }

func (s *UserService) DeactivateUser(ctx context.Context, id string) error {
	return s.modifyUser(ctx, id, func(u *models.User) error {
		u.IsActive = false
		return nil
	})
}

func (s *UserService) ActivateUser(ctx context.Context, id string) error {
	return s.modifyUser(ctx, id, func(u *models.User) error {
		u.IsActive = true
		return nil
	})
}

// DeleteCustomer removes a customer and their accounts. It fails, removing
// nothing, when any of the accounts holds money.
func (s *UserService) DeleteCustomer(ctx context.Context, id string) error {
	user, err := s.GetUserByID(id)
	if err != nil {
		return err
	}
	if _, err := user.RequireCustomer(); err != nil {
		return err
	}

	err = s.accounts.Modify(ctx, func(tx *storage.Tx[*models.Account]) error {
		owned := tx.Find(func(a *models.Account) bool { return a.OwnerID() == id })
		for _, a := range owned {
			if balance := a.Balance(); !balance.IsZero() {
				return fmt.Errorf("account %s holds $%s: %w", a.Number(), balance.StringFixed(models.Cents), models.ErrNonZeroBalance)
			}
		}
		for _, a := range owned {
			tx.Remove(a.Number())
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !s.users.Delete(ctx, id) {
		return fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
	}
	return nil
}

// ChangePassword replaces the hash after checking the current password.
func (s *UserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if err := validate.Password(newPassword, s.passwordMinLength); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.modifyUser(ctx, id, func(u *models.User) error {
		if !auth.CheckPassword(u.PasswordHash, oldPassword) {
			return models.ErrInvalidCredentials
		}
		u.PasswordHash = hash
		return nil
	})
}

// UpdateProfile changes the email and/or full name. Nil leaves a field as is.
func (s *UserService) UpdateProfile(ctx context.Context, id string, email, fullName *string) error {
	if email != nil {
		if err := validate.Email(*email); err != nil {
			return err
		}
	}
	if fullName != nil {
		if err := validate.FullName(*fullName); err != nil {
			return err
		}
	}
	return s.modifyUser(ctx, id, func(u *models.User) error {
		if email != nil {
			u.Email = *email
		}
		if fullName != nil {
			u.FullName = *fullName
		}
		return nil
	})
}

func (s *UserService) modifyUser(ctx context.Context, id string, fn func(*models.User) error) error {
	_, err := s.users.Update(ctx, id, fn)
	return err
}

type CustomerSummary struct {
	CustomerID     string          `json:"customer_id"`
	Username       string          `json:"username"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	CustomerSince  time.Time       `json:"customer_since"`
	LastLogin      *time.Time      `json:"last_login"`
	IsActive       bool            `json:"is_active"`
	TotalAccounts  int             `json:"total_accounts"`
	ActiveAccounts int             `json:"active_accounts"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	Accounts       []AccountLine   `json:"accounts"`
}

func (s *UserService) CustomerSummary(id string) (CustomerSummary, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return CustomerSummary{}, err
	}
	profile, err := user.RequireCustomer()
	if err != nil {
		return CustomerSummary{}, err
	}

	accounts := s.accounts.ByOwner(id)
	summary := CustomerSummary{
		CustomerID:    user.ID,
		Username:      user.Username,
		FullName:      user.FullName,
		Email:         user.Email,
		CustomerSince: profile.CustomerSince,
		LastLogin:     user.LastLogin,
		IsActive:      user.IsActive,
		TotalAccounts: len(accounts),
		TotalBalance:  decimal.Zero,
		Accounts:      lines(accounts),
	}
	for _, a := range accounts {
		if a.IsActive() {
			summary.ActiveAccounts++
		}
		summary.TotalBalance = summary.TotalBalance.Add(a.Balance())
	}
	return summary, nil
}

type SystemStatistics struct {
	TotalUsers         int             `json:"total_users"`
	TotalCustomers     int             `json:"total_customers"`
	TotalManagers      int             `json:"total_managers"`
	ActiveUsers        int             `json:"active_users"`
	TotalAccounts      int             `json:"total_accounts"`
	ActiveAccounts     int             `json:"active_accounts"`
	TotalSystemBalance decimal.Decimal `json:"total_system_balance"`
	AccountTypes       map[string]int  `json:"account_types"`
}

func (s *UserService) SystemStatistics() SystemStatistics {
	stats := SystemStatistics{
		TotalUsers:         s.users.Count(),
		TotalCustomers:     len(s.users.Customers()),
		TotalManagers:      len(s.users.Managers()),
		ActiveUsers:        len(s.users.ActiveUsers()),
		TotalAccounts:      s.accounts.Count(),
		ActiveAccounts:     len(s.accounts.Active()),
		TotalSystemBalance: s.accounts.TotalBalance(),
		AccountTypes:       make(map[string]int),
	}
	for _, t := range models.AccountTypes {
		stats.AccountTypes[string(t)] = len(s.accounts.ByType(t))
	}
	return stats
}

// SearchCustomers matches the term against username and full name, ignoring case.
func (s *UserService) SearchCustomers(term string) []*models.User {
	term = strings.ToLower(term)
	var out []*models.User
	for _, c := range s.users.Customers() {
		if strings.Contains(strings.ToLower(c.Username), term) || strings.Contains(strings.ToLower(c.FullName), term) {
			out = append(out, c)
		}
	}
	return out
}
