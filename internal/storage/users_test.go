package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/storage"
	"github.com/sheikh-saqib/deskbank/internal/storage/memory"
)

func TestUserRepository_Insert(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewUserRepository(memory.NewSnapshotStore())

	alice := models.NewCustomer("alice", "hash", "alice@bank.test", "Alice A")
	require.NoError(t, repo.Insert(ctx, alice))

	err := repo.Insert(ctx, models.NewCustomer("alice", "hash", "", ""))
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	err = repo.Insert(ctx, models.NewCustomer("alicia", "hash", "alice@bank.test", ""))
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	// Empty emails never collide.
	require.NoError(t, repo.Insert(ctx, models.NewCustomer("bob", "hash", "", "")))
	require.NoError(t, repo.Insert(ctx, models.NewCustomer("carol", "hash", "", "")))

	assert.Equal(t, 3, repo.Count())
}

func TestUserRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewUserRepository(memory.NewSnapshotStore())

	bob := models.NewCustomer("bob", "hash", "bob@bank.test", "")
	alice := models.NewCustomer("alice", "hash", "", "")
	boss := models.NewManager("boss", "hash", "", "", "", "")
	for _, u := range []*models.User{bob, alice, boss} {
		require.NoError(t, repo.Insert(ctx, u))
	}
	alice, err := repo.Update(ctx, alice.ID, func(u *models.User) error {
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)

	got, ok := repo.ByUsername("bob")
	require.True(t, ok)
	assert.Same(t, bob, got)

	_, ok = repo.ByUsername("Bob")
	assert.False(t, ok)

	got, ok = repo.ByEmail("bob@bank.test")
	require.True(t, ok)
	assert.Same(t, bob, got)

	_, ok = repo.ByEmail("")
	assert.False(t, ok)

	assert.True(t, repo.UsernameExists("boss"))
	assert.False(t, repo.EmailExists("nobody@bank.test"))

	assert.Equal(t, []*models.User{alice, bob}, repo.Customers())
	assert.Equal(t, []*models.User{boss}, repo.Managers())
	assert.Equal(t, []*models.User{bob, boss}, repo.ActiveUsers())
}

func TestUserRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSnapshotStore()
	repo := storage.NewUserRepository(store)

	alice := models.NewCustomer("alice", "hash", "alice@bank.test", "Alice A")
	boss := models.NewManager("boss", "hash", "", "Boss", "EMP-7", "Audit")
	require.NoError(t, repo.Insert(ctx, alice))
	require.NoError(t, repo.Insert(ctx, boss))

	reloaded := storage.NewUserRepository(store)
	require.NoError(t, reloaded.Load(ctx))

	got, ok := reloaded.GetByID(boss.ID)
	require.True(t, ok)
	mp, err := got.RequireManager()
	require.NoError(t, err)
	assert.Equal(t, "EMP-7", mp.EmployeeID)
	assert.Equal(t, "Audit", mp.Department)

	got, ok = reloaded.GetByID(alice.ID)
	require.True(t, ok)
	assert.True(t, got.IsCustomer())
	assert.Equal(t, "alice@bank.test", got.Email)
}

func TestUserRepository_UpdateStoresACopy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSnapshotStore()
	repo := storage.NewUserRepository(store)
	alice := models.NewCustomer("alice", "hash", "alice@bank.test", "")
	require.NoError(t, repo.Insert(ctx, alice))
	writes := store.Writes()

	updated, err := repo.Update(ctx, alice.ID, func(u *models.User) error {
		u.FullName = "Alice Smith"
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)

	assert.NotSame(t, alice, updated)
	assert.Equal(t, "alice", alice.FullName)
	assert.True(t, alice.IsActive)
	got, _ := repo.GetByID(alice.ID)
	assert.Same(t, updated, got)
	assert.False(t, got.IsActive)
	assert.Equal(t, writes+1, store.Writes())

	_, err = repo.Update(ctx, "nope", func(*models.User) error { return nil })
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestUserRepository_UpdateKeepsUniqueness(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSnapshotStore()
	repo := storage.NewUserRepository(store)
	alice := models.NewCustomer("alice", "hash", "alice@bank.test", "")
	bob := models.NewCustomer("bob", "hash", "bob@bank.test", "")
	require.NoError(t, repo.Insert(ctx, alice))
	require.NoError(t, repo.Insert(ctx, bob))
	writes := store.Writes()

	_, err := repo.Update(ctx, bob.ID, func(u *models.User) error {
		u.Username = "alice"
		return nil
	})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = repo.Update(ctx, bob.ID, func(u *models.User) error {
		u.Email = "alice@bank.test"
		return nil
	})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	// The id cannot be moved onto another user.
	_, err = repo.Update(ctx, bob.ID, func(u *models.User) error {
		u.ID = alice.ID
		return nil
	})
	require.NoError(t, err)

	got, _ := repo.GetByID(bob.ID)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, "bob@bank.test", got.Email)
	got, _ = repo.GetByID(alice.ID)
	assert.Same(t, alice, got)
	assert.Equal(t, 2, repo.Count())
	assert.Equal(t, writes+1, store.Writes())

	// Keeping its own username and email is not a collision.
	_, err = repo.Update(ctx, bob.ID, func(u *models.User) error {
		u.FullName = "Bob B"
		return nil
	})
	assert.NoError(t, err)

	assert.Error(t, repo.Insert(ctx, bob))
	assert.Equal(t, 2, repo.Count())
}
