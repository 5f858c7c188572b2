package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type AuthService struct {
	users    repository.UserRepository
	sessions SessionStore
	hasher   *Hasher
	tokens   *tokenSigner
	ttl      time.Duration
	now      func() time.Time

	// dummyHash is compared against when the email is unknown so that
	// unknown-email and wrong-password logins cost the same.
	dummyHash string
}

func NewAuthService(users repository.UserRepository, sessions SessionStore, hasher *Hasher, secret []byte, ttl time.Duration) (*AuthService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	a := &AuthService{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		ttl:       ttl,
		now:       time.Now,
		dummyHash: dummy,
	}
	a.tokens = &tokenSigner{secret: secret, now: func() time.Time { return a.now() }}
	return a, nil
}

// SetClock overrides the time source.
func (a *AuthService) SetClock(now func() time.Time) { a.now = now }

func (a *AuthService) TTL() time.Duration { return a.ttl }

// Register creates a self-service account with the user role. Privileged
// accounts come from CreateUser.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return a.CreateUser(ctx, in, models.RoleUser)
}

// CreateUser registers an account with an explicit role. Used by the CLI.
func (a *AuthService) CreateUser(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	switch {
	case in.Email == "" || in.FirstName == "" || in.LastName == "" || in.Password == "":
		return nil, apperr.Validation("email, password, firstName and lastName are required")
	case !validEmail(in.Email):
		return nil, apperr.Validation("invalid email address")
	case len(in.Password) < MinPasswordLength:
		return nil, apperr.Validation("password must be at least 8 characters")
	case len(in.Password) > MaxPasswordBytes:
		return nil, apperr.Validation("password must be at most 72 bytes")
	case !models.ValidRole(role):
		return nil, apperr.Validation("invalid role")
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	return a.users.Create(ctx, models.NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
	})
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Login verifies credentials and opens a session. Unknown email, inactive
// account and wrong password all fail with the same error.
func (a *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	u, hash, err := a.users.Credentials(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		_ = a.hasher.Compare(a.dummyHash, password)
		return nil, nil, apperr.Unauthenticated()
	}
	if err != nil {
		return nil, nil, err
	}
	if a.hasher.Compare(hash, password) != nil || !u.IsActive {
		return nil, nil, apperr.Unauthenticated()
	}

	now := a.now().UTC()
	if err := a.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, nil, err
	}
	u.LastLogin = &now

	token, jti, issued, expires, err := a.tokens.issue(u.ID, a.ttl)
	if err != nil {
		return nil, nil, err
	}
	s := &models.Session{
		ID:          jti,
		Token:       token,
		TokenDigest: sha256.Sum256([]byte(token)),
		UserID:      u.ID,
		IssuedAt:    issued,
		ExpiresAt:   expires,
		User:        *u,
	}
	stored := *s
	stored.Token = "" // the table keeps the digest only
	a.sessions.Put(&stored)
	return s, u, nil
}

// Validate resolves a bearer token to its active user. While the store is
// unreachable a live session resolves to the user as of login.
func (a *AuthService) Validate(ctx context.Context, token string) (*models.User, error) {
	s, err := a.lookup(token)
	if err != nil {
		return nil, err
	}
	u, err := a.users.FindByID(ctx, s.UserID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		a.sessions.Delete(s.ID)
		return nil, apperr.Unauthenticated()
	case errors.Is(err, apperr.ErrStoreUnavailable):
		snapshot := s.User
		return &snapshot, nil
	case err != nil:
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated()
	}
	return u, nil
}

func (a *AuthService) lookup(token string) (*models.Session, error) {
	if token == "" {
		return nil, apperr.Unauthenticated()
	}
	claims, err := a.tokens.parse(token)
	if err != nil {
		return nil, apperr.Unauthenticated()
	}
	s, ok := a.sessions.Get(claims.ID)
	if !ok {
		return nil, apperr.Unauthenticated()
	}
	digest := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(digest[:], s.TokenDigest[:]) != 1 || s.UserID != claims.Subject {
		return nil, apperr.Unauthenticated()
	}
	if s.Expired(a.now()) {
		a.sessions.Delete(s.ID)
		return nil, apperr.Unauthenticated()
	}
	return s, nil
}

// Logout ends the session behind token. Unknown or malformed tokens are
// ignored.
func (a *AuthService) Logout(_ context.Context, token string) error {
	if s, err := a.lookup(token); err == nil {
		a.sessions.Delete(s.ID)
	}
	return nil
}
