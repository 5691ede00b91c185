package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clan-manager/internal/apperr"
	"clan-manager/internal/observability"
	"clan-manager/internal/security"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// LockedError reports a login refused because the account is locked.
type LockedError struct {
	RetryAfter time.Duration
}

func (e LockedError) Error() string {
	return "account temporarily locked"
}

type UserStore interface {
	Create(ctx context.Context, user User) error
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Delete(ctx context.Context, id string) error
	UpdateRole(ctx context.Context, id string, role Role) (User, error)
	EnsureAdmin(ctx context.Context, user User) (User, error)
}

// LockoutTracker reserves each login attempt before the password is checked
// and forgets them after a successful login.
type LockoutTracker interface {
	Reserve(ctx context.Context, username string) (security.Attempt, error)
	Clear(ctx context.Context, username string) error
}

type Service struct {
	users      UserStore
	tracker    LockoutTracker
	tokens     *TokenIssuer
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(users UserStore, tracker LockoutTracker, tokens *TokenIssuer) *Service {
	return &Service{
		users:      users,
		tracker:    tracker,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithBcryptCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.bcryptCost = cost
	}
	return s
}

func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return User{}, err
	}
	if err := validatePassword(password); err != nil {
		return User{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Login verifies the credentials against the stored hash. Unknown usernames and
// wrong passwords fail the same way and both count towards the lockout.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	attempt, err := s.tracker.Reserve(ctx, username)
	if err != nil {
		return Session{}, fmt.Errorf("reserve login attempt: %w", err)
	}
	if attempt.Locked {
		return Session{}, LockedError{RetryAfter: attempt.RetryAfter}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return Session{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return Session{}, s.loginFailed(ctx, username, attempt)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, s.loginFailed(ctx, username, attempt)
	}

	if err := s.tracker.Clear(ctx, username); err != nil {
		return Session{}, fmt.Errorf("clear failed logins: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return Session{}, err
	}

	return Session{Token: token, ExpiresAt: expiresAt, User: user.Identity()}, nil
}

func (s *Service) loginFailed(ctx context.Context, username string, attempt security.Attempt) error {
	if attempt.Final {
		observability.LoggerFrom(ctx).Warn("account_locked", map[string]any{"username": username})
	}
	return ErrInvalidCredentials
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password-1"), s.bcryptCost)
	})
	return s.dummyHash
}

// BootstrapAdmin makes sure the configured admin account exists. Both values
// empty means no bootstrap account.
func (s *Service) BootstrapAdmin(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" && password == "" {
		return User{}, nil
	}
	if username == "" || password == "" {
		return User{}, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}
	if err := validateUsername(username); err != nil {
		return User{}, fmt.Errorf("ADMIN_USERNAME: %w", err)
	}
	if err := validatePassword(password); err != nil {
		return User{}, fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.EnsureAdmin(ctx, User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		CreatedAt:    s.now(),
	})
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	if !validID(userID) {
		return User{}, ErrUserNotFound
	}
	return s.users.GetByID(ctx, userID)
}

func (s *Service) DeleteUser(ctx context.Context, caller Identity, userID string) error {
	if caller.UserID == userID {
		return apperr.Validation("you cannot delete your own account")
	}
	if !validID(userID) {
		return ErrUserNotFound
	}
	return s.users.Delete(ctx, userID)
}

func (s *Service) ChangeRole(ctx context.Context, caller Identity, userID, role string) (User, error) {
	parsed, err := ParseRole(role)
	if err != nil {
		return User{}, apperr.Validation(err.Error())
	}
	if caller.UserID == userID {
		return User{}, apperr.Validation("you cannot change your own role")
	}
	if !validID(userID) {
		return User{}, ErrUserNotFound
	}
	return s.users.UpdateRole(ctx, userID, parsed)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return apperr.Validation("username must be 3-20 characters: letters, digits, _ or -")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordBytes || len(password) > maxPasswordBytes {
		return apperr.Validation("password must be between 8 and 72 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apperr.Validation("password must contain at least one letter and one digit")
	}

	return nil
}
