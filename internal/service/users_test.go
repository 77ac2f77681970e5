package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/deskbank/internal/auth"
	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/validate"
)

func TestUserService_RegisterCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.user.RegisterCustomer(ctx, "alice", strongPassword, "alice@bank.test", "Alice Smith")
	require.NoError(t, err)
	assert.True(t, u.IsCustomer())
	assert.NotEqual(t, strongPassword, u.PasswordHash)
	assert.True(t, auth.CheckPassword(u.PasswordHash, strongPassword))

	_, err = f.user.RegisterCustomer(ctx, "alice", strongPassword, "", "")
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = f.user.RegisterCustomer(ctx, "alicia", strongPassword, "alice@bank.test", "")
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	_, err = f.user.RegisterCustomer(ctx, "bob", "weak", "", "")
	assert.ErrorIs(t, err, validate.ErrInvalid)

	_, err = f.user.RegisterCustomer(ctx, "1bob", strongPassword, "", "")
	assert.ErrorIs(t, err, validate.ErrInvalid)

	assert.Equal(t, 1, f.users.Count())
}

func TestUserService_CreateManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	m, err := f.user.CreateManager(ctx, "boss", strongPassword, "", "Big Boss", "EMP-001", "Audit")
	require.NoError(t, err)
	p, err := m.RequireManager()
	require.NoError(t, err)
	assert.Equal(t, "EMP-001", p.EmployeeID)
	assert.Equal(t, "Audit", p.Department)

	_, err = f.user.CreateManager(ctx, "boss2", strongPassword, "", "", "E!", "")
	assert.ErrorIs(t, err, validate.ErrInvalid)

	assert.Equal(t, []*models.User{m}, f.user.Managers())
}

func TestUserService_Lookups(t *testing.T) {
	f := newFixture(t)
	alice := f.customer(t, "alice")

	got, err := f.user.GetUserByID(alice.ID)
	require.NoError(t, err)
	assert.Same(t, alice, got)

	got, err = f.user.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Same(t, alice, got)

	_, err = f.user.GetUserByID("nope")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	_, err = f.user.GetUserByUsername("nope")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestUserService_ActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")

	require.NoError(t, f.user.DeactivateUser(ctx, alice.ID))
	assert.False(t, f.reload(t, alice.ID).IsActive)
	assert.Empty(t, f.user.ActiveUsers())
	// Users handed out earlier keep the state they were read with.
	assert.True(t, alice.IsActive)

	require.NoError(t, f.user.ActivateUser(ctx, alice.ID))
	assert.True(t, f.reload(t, alice.ID).IsActive)

	assert.ErrorIs(t, f.user.DeactivateUser(ctx, "nope"), models.ErrUserNotFound)
}

func TestUserService_DeleteCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")
	a, err := f.account.CreateAccount(ctx, alice, models.Checking, dec("50"))
	require.NoError(t, err)
	_, err = f.account.CreateAccount(ctx, alice, models.Checking, dec("0"))
	// Checking requires 50 up front.
	require.ErrorIs(t, err, models.ErrBelowMinimumBalance)

	err = f.user.DeleteCustomer(ctx, alice.ID)
	assert.ErrorIs(t, err, models.ErrNonZeroBalance)
	assert.True(t, f.users.Exists(alice.ID))
	assert.True(t, f.accounts.Exists(a.Number()))

	_, err = a.Withdraw(dec("50"), "")
	require.NoError(t, err)
	require.NoError(t, f.user.DeleteCustomer(ctx, alice.ID))
	assert.False(t, f.users.Exists(alice.ID))
	assert.False(t, f.accounts.Exists(a.Number()))

	boss, err := f.user.CreateManager(ctx, "boss", strongPassword, "", "", "", "")
	require.NoError(t, err)
	assert.ErrorIs(t, f.user.DeleteCustomer(ctx, boss.ID), models.ErrWrongRole)
}

func TestUserService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")
	const next = "N3w!Secret"

	err := f.user.ChangePassword(ctx, alice.ID, "Wr0ng!Pass", next)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	err = f.user.ChangePassword(ctx, alice.ID, strongPassword, "short")
	assert.ErrorIs(t, err, validate.ErrInvalid)

	require.NoError(t, f.user.ChangePassword(ctx, alice.ID, strongPassword, next))
	hash := f.reload(t, alice.ID).PasswordHash
	assert.True(t, auth.CheckPassword(hash, next))
	assert.False(t, auth.CheckPassword(hash, strongPassword))
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")
	_, err := f.user.RegisterCustomer(ctx, "bob", strongPassword, "bob@bank.test", "")
	require.NoError(t, err)

	email, name := "alice@bank.test", "Alice Smith"
	require.NoError(t, f.user.UpdateProfile(ctx, alice.ID, &email, &name))
	got := f.reload(t, alice.ID)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, name, got.FullName)

	taken := "bob@bank.test"
	assert.ErrorIs(t, f.user.UpdateProfile(ctx, alice.ID, &taken, nil), models.ErrEmailTaken)

	bad := "not-an-email"
	assert.ErrorIs(t, f.user.UpdateProfile(ctx, alice.ID, &bad, nil), validate.ErrInvalid)

	// Updating only the name keeps the email.
	other := "Alice Jones"
	require.NoError(t, f.user.UpdateProfile(ctx, alice.ID, nil, &other))
	got = f.reload(t, alice.ID)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, other, got.FullName)
}

func TestUserService_Reports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, err := f.user.RegisterCustomer(ctx, "alice", strongPassword, "", "Alice Smith")
	require.NoError(t, err)
	_, err = f.user.RegisterCustomer(ctx, "bob", strongPassword, "", "Bob Stone")
	require.NoError(t, err)
	_, err = f.user.CreateManager(ctx, "boss", strongPassword, "", "", "", "")
	require.NoError(t, err)
	_, err = f.account.CreateAccount(ctx, alice, models.Savings, dec("100"))
	require.NoError(t, err)
	_, err = f.account.CreateAccount(ctx, alice, models.Business, dec("500"))
	require.NoError(t, err)

	summary, err := f.user.CustomerSummary(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", summary.Username)
	assert.Equal(t, 2, summary.TotalAccounts)
	assert.Equal(t, 2, summary.ActiveAccounts)
	assert.True(t, summary.TotalBalance.Equal(dec("600")))
	assert.Equal(t, alice.CreatedAt, summary.CustomerSince)

	stats := f.user.SystemStatistics()
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, 1, stats.TotalManagers)
	assert.Equal(t, 2, stats.TotalAccounts)
	assert.True(t, stats.TotalSystemBalance.Equal(dec("600")))
	assert.Equal(t, map[string]int{"Savings": 1, "Checking": 0, "Business": 1}, stats.AccountTypes)

	found := f.user.SearchCustomers("STONE")
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].Username)
	assert.Len(t, f.user.SearchCustomers("smi"), 1)
	assert.Empty(t, f.user.SearchCustomers("boss"))
}

func TestUserService_StatusChangesWhileSessionsAreChecked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")
	sessions := auth.NewService(f.users, auth.NewTokenManager("secret", "deskbank", time.Hour))
	token, _, err := sessions.Login(ctx, "alice", strongPassword)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = f.user.DeactivateUser(ctx, alice.ID)
			_ = f.user.ActivateUser(ctx, alice.ID)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = sessions.ValidateSession(token)
			_ = f.user.ActiveUsers()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _, _ = sessions.Login(ctx, "alice", strongPassword)
			_, _ = f.user.CustomerSummary(alice.ID)
		}
	}()
	wg.Wait()

	got := f.reload(t, alice.ID)
	assert.True(t, got.IsActive)
	assert.NotNil(t, got.LastLogin)
	assert.Equal(t, 1, f.users.Count())
}
