package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/storage"
)

// Service authenticates users and tracks their session tokens. Tokens are
// self-contained, so a token issued by another process stays valid until it
// expires. Revocations only apply to the process that recorded them.
type Service struct {
	users  *storage.UserRepository
	tokens *TokenManager

	mu        sync.Mutex
	issued    map[string]Claims    // session id -> claims, sessions issued here
	revoked   map[string]time.Time // session id -> expiry
	loggedOut map[string]time.Time // user id -> tokens issued before this second are rejected
}

func NewService(users *storage.UserRepository, tokens *TokenManager) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		issued:    make(map[string]Claims),
		revoked:   make(map[string]time.Time),
		loggedOut: make(map[string]time.Time),
	}
}

// Authenticate checks the credentials of an active user and stamps its last
// login. The password is compared outside the repository lock. The stamp is
// refused if the user was deactivated or changed password in between.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	found, ok := s.users.ByUsername(username)
	if !ok || !found.IsActive || !CheckPassword(found.PasswordHash, password) {
		return nil, models.ErrInvalidCredentials
	}
	user, err := s.users.Update(ctx, found.ID, func(u *models.User) error {
		if !u.IsActive || u.PasswordHash != found.PasswordHash {
			return models.ErrInvalidCredentials
		}
		u.Touch()
		return nil
	})
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates and opens a session in one step.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.CreateSession(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) CreateSession(user *models.User) (string, error) {
	token, claims, err := s.tokens.Generate(user.ID, user.Username, string(user.Role()))
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	s.mu.Lock()
	s.issued[claims.SessionID] = claims
	s.mu.Unlock()
	return token, nil
}

// ValidateSession returns the session's user. Expiry is checked here, on use.
func (s *Service) ValidateSession(token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidSession, err)
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.SessionID]
	cutoff, loggedOut := s.loggedOut[claims.UserID]
	s.mu.Unlock()
	if revoked || (loggedOut && claims.IssuedAt.Before(cutoff)) {
		return nil, models.ErrInvalidSession
	}

	user, ok := s.users.GetByID(claims.UserID)
	if !ok || !user.IsActive {
		s.revoke(claims)
		return nil, models.ErrInvalidSession
	}
	return user, nil
}

// Logout revokes one session. It reports false for tokens that don't verify.
func (s *Service) Logout(token string) bool {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return false
	}
	s.revoke(claims)
	return true
}

// LogoutUser revokes every session of the user issued so far and reports
// how many of the sessions issued by this process were closed.
func (s *Service) LogoutUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loggedOut[userID] = s.tokens.now().Truncate(time.Second)
	closed := 0
	for id, c := range s.issued {
		if c.UserID == userID {
			s.revoked[id] = c.ExpiresAt
			delete(s.issued, id)
			closed++
		}
	}
	return closed
}

func (s *Service) revoke(c Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[c.SessionID] = c.ExpiresAt
	delete(s.issued, c.SessionID)
}

// CleanupExpiredSessions forgets sessions and revocations past their expiry
// and returns how many issued sessions were dropped.
func (s *Service) CleanupExpiredSessions() int {
	now := s.tokens.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, c := range s.issued {
		if !now.Before(c.ExpiresAt) {
			delete(s.issued, id)
			dropped++
		}
	}
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
	return dropped
}

// ActiveSessionCount counts unexpired sessions issued by this process.
func (s *Service) ActiveSessionCount() int {
	now := s.tokens.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.issued {
		if now.Before(c.ExpiresAt) {
			n++
		}
	}
	return n
}

// RequireCustomer validates the session and requires the customer role.
func (s *Service) RequireCustomer(token string) (*models.User, error) {
	user, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	if _, err := user.RequireCustomer(); err != nil {
		return nil, err
	}
	return user, nil
}

// RequireManager validates the session and requires the manager role.
func (s *Service) RequireManager(token string) (*models.User, error) {
	user, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	if _, err := user.RequireManager(); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckPermission reports whether the user may perform the action. Only
// managers hold permissions.
func (s *Service) CheckPermission(user *models.User, permission string) bool {
	profile, err := user.RequireManager()
	return err == nil && user.IsActive && profile.HasPermission(permission)
}
