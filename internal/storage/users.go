package storage

import (
	"context"
	"fmt"
	"sort"

	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
	"github.com/sheikh-saqib/deskbank/internal/models"
)

// UserRepository stores customers and managers keyed by user id. Users it
// returns are shared snapshots and are never changed in place: Update puts
// a changed copy back instead, so readers need no lock.
type UserRepository struct {
	repo *Repository[*models.User, models.UserRecord]
}

func NewUserRepository(store interfaces.SnapshotStore) *UserRepository {
	return &UserRepository{
		repo: NewRepository("users", store, Codec[*models.User, models.UserRecord]{
			Key:    func(u *models.User) string { return u.ID },
			Encode: func(u *models.User) models.UserRecord { return u.ToRecord() },
			Decode: models.UserFromRecord,
		}),
	}
}

// Insert adds a new user after checking username and email uniqueness under
// the same lock.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	return r.repo.Modify(ctx, func(tx *Tx[*models.User]) error {
		if _, ok := tx.Get(user.ID); ok {
			return fmt.Errorf("user %s already stored", user.ID)
		}
		if err := checkUnique(tx, user); err != nil {
			return err
		}
		tx.Put(user)
		return nil
	})
}

// Update applies fn to a copy of the user and stores the copy when fn
// succeeds and the username and email are still unique. It returns the
// stored copy.
func (r *UserRepository) Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	var updated *models.User
	err := r.repo.Modify(ctx, func(tx *Tx[*models.User]) error {
		current, ok := tx.Get(id)
		if !ok {
			return fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = current.ID
		if err := checkUnique(tx, next); err != nil {
			return err
		}
		tx.Put(next)
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func checkUnique(tx *Tx[*models.User], user *models.User) error {
	others := func(match func(*models.User) bool) func(*models.User) bool {
		return func(u *models.User) bool { return u.ID != user.ID && match(u) }
	}
	if len(tx.Find(others(usernameIs(user.Username)))) > 0 {
		return fmt.Errorf("%q: %w", user.Username, models.ErrUsernameTaken)
	}
	if user.Email != "" && len(tx.Find(others(emailIs(user.Email)))) > 0 {
		return fmt.Errorf("%q: %w", user.Email, models.ErrEmailTaken)
	}
	return nil
}

// Delete removes the user and persists. It reports false when the user is unknown.
func (r *UserRepository) Delete(ctx context.Context, id string) bool {
	return r.repo.Delete(ctx, id)
}

func (r *UserRepository) GetByID(id string) (*models.User, bool) { return r.repo.GetByID(id) }

func (r *UserRepository) Exists(id string) bool { return r.repo.Exists(id) }

func (r *UserRepository) Count() int { return r.repo.Count() }

func (r *UserRepository) Load(ctx context.Context) error { return r.repo.Load(ctx) }

func (r *UserRepository) Save(ctx context.Context) error { return r.repo.Save(ctx) }

func (r *UserRepository) ByUsername(username string) (*models.User, bool) {
	return first(r.repo.Find(usernameIs(username)))
}

func (r *UserRepository) ByEmail(email string) (*models.User, bool) {
	if email == "" {
		return nil, false
	}
	return first(r.repo.Find(emailIs(email)))
}

func (r *UserRepository) UsernameExists(username string) bool {
	_, ok := r.ByUsername(username)
	return ok
}

func (r *UserRepository) EmailExists(email string) bool {
	_, ok := r.ByEmail(email)
	return ok
}

func (r *UserRepository) Customers() []*models.User {
	return byUsername(r.repo.Find(func(u *models.User) bool { return u.IsCustomer() }))
}

func (r *UserRepository) Managers() []*models.User {
	return byUsername(r.repo.Find(func(u *models.User) bool { return u.IsManager() }))
}

func (r *UserRepository) ActiveUsers() []*models.User {
	return byUsername(r.repo.Find(func(u *models.User) bool { return u.IsActive }))
}

func usernameIs(username string) func(*models.User) bool {
	return func(u *models.User) bool { return u.Username == username }
}

func emailIs(email string) func(*models.User) bool {
	return func(u *models.User) bool { return u.Email != "" && u.Email == email }
}

func first(users []*models.User) (*models.User, bool) {
	if len(users) == 0 {
		return nil, false
	}
	return users[0], true
}

func byUsername(users []*models.User) []*models.User {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}
