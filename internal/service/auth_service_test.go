package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/repository/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuth(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.New()
	a, err := NewAuthService(store.Users(), NewMemorySessionStore(100, time.Hour, zerolog.Nop()), NewHasher(4), []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return a, store
}

func register(t *testing.T, a *AuthService, email string) *models.User {
	t.Helper()
	u, err := a.Register(context.Background(), RegisterInput{
		Email: email, Password: "correct-horse", FirstName: "Test", LastName: "User",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterLoginValidate(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t)

	first := register(t, a, "Admin@Example.com")
	assert.Equal(t, models.RoleUser, first.Role, "self registration never grants admin")
	assert.Equal(t, "admin@example.com", first.Email)

	second := register(t, a, "someone@example.com")
	assert.Equal(t, models.RoleUser, second.Role)

	s, u, err := a.Login(ctx, "someone@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, second.ID, u.ID)
	require.NotNil(t, u.LastLogin)
	assert.NotEmpty(t, s.Token)
	assert.True(t, s.ExpiresAt.After(s.IssuedAt))

	got, err := a.Validate(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestRegisterValidation(t *testing.T) {
	a, _ := newAuth(t)
	cases := map[string]RegisterInput{
		"missing email":   {Password: "long-enough", FirstName: "A", LastName: "B"},
		"malformed email": {Email: "not-an-email", Password: "long-enough", FirstName: "A", LastName: "B"},
		"display name":    {Email: "Bob <bob@example.com>", Password: "long-enough", FirstName: "A", LastName: "B"},
		"short password":  {Email: "a@example.com", Password: "short", FirstName: "A", LastName: "B"},
		"long password":   {Email: "a@example.com", Password: strings.Repeat("p", 80), FirstName: "A", LastName: "B"},
		"blank name":      {Email: "a@example.com", Password: "long-enough", FirstName: "  ", LastName: "B"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Register(context.Background(), in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestRegisterDuplicateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t)
	register(t, a, "dup@example.com")

	_, err := a.Register(ctx, RegisterInput{Email: "DUP@example.com", Password: "another-one", FirstName: "X", LastName: "Y"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = a.Login(ctx, "dup@example.com", "correct-horse")
	require.NoError(t, err)
	_, _, err = a.Login(ctx, "dup@example.com", "another-one")
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	a, store := newAuth(t)
	register(t, a, "admin@example.com")
	inactive := register(t, a, "inactive@example.com")
	_, err := store.Resources().Update(ctx, repository.MustKind(repository.KindUsers), inactive.ID,
		map[string]any{"isActive": false}, "", nil)
	require.NoError(t, err)

	attempts := []struct{ email, password string }{
		{"admin@example.com", "wrong-password"},
		{"nobody@example.com", "correct-horse"},
		{"inactive@example.com", "correct-horse"},
	}
	var msgs []string
	for _, at := range attempts {
		_, _, err := a.Login(ctx, at.email, at.password)
		require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
		msgs = append(msgs, apperr.Public(err))
	}
	assert.Equal(t, []string{"invalid credentials", "invalid credentials", "invalid credentials"}, msgs)
}

func TestValidateRejects(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t)
	register(t, a, "v@example.com")
	s, _, err := a.Login(ctx, "v@example.com", "correct-horse")
	require.NoError(t, err)

	other, err := NewAuthService(nil, NewMemorySessionStore(10, time.Hour, zerolog.Nop()), NewHasher(4), []byte("another-secret-another-secret-xx"), time.Hour)
	require.NoError(t, err)
	forged, _, _, _, err := other.tokens.issue("someone", time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":         "",
		"garbage":       "not.a.token",
		"bad signature": forged,
		"tampered":      s.Token + "x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Validate(ctx, tok)
			require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
		})
	}
}

func TestValidateUnknownSession(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t)
	u := register(t, a, "ghost@example.com")

	// Signed with the right key but never stored.
	token, _, _, _, err := a.tokens.issue(u.ID, time.Hour)
	require.NoError(t, err)
	_, err = a.Validate(ctx, token)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t)
	now := time.Now()
	a.SetClock(func() time.Time { return now })
	register(t, a, "exp@example.com")
	s, _, err := a.Login(ctx, "exp@example.com", "correct-horse")
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = a.Validate(ctx, s.Token)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = a.Validate(ctx, s.Token)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t)
	register(t, a, "out@example.com")
	s, _, err := a.Login(ctx, "out@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, s.Token))
	_, err = a.Validate(ctx, s.Token)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)

	require.NoError(t, a.Logout(ctx, s.Token))
	require.NoError(t, a.Logout(ctx, "garbage"))
}

func TestDeletedUserInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	a, store := newAuth(t)
	register(t, a, "admin@example.com")
	u := register(t, a, "leaver@example.com")
	s, _, err := a.Login(ctx, "leaver@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, store.Resources().Delete(ctx, repository.MustKind(repository.KindUsers), u.ID))
	_, err = a.Validate(ctx, s.Token)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestValidateDuringOutageUsesLoginSnapshot(t *testing.T) {
	ctx := context.Background()
	a, store := newAuth(t)
	u := register(t, a, "snap@example.com")
	s, _, err := a.Login(ctx, "snap@example.com", "correct-horse")
	require.NoError(t, err)

	store.SetOffline(true)
	got, err := a.Validate(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleUser, got.Role)

	_, err = a.Validate(ctx, "garbage")
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestStoreOutageIsNotAuthFailure(t *testing.T) {
	ctx := context.Background()
	a, store := newAuth(t)
	register(t, a, "up@example.com")
	store.SetOffline(true)

	_, _, err := a.Login(ctx, "up@example.com", "correct-horse")
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestConcurrentRegistrationGrantsNoAdmin(t *testing.T) {
	ctx := context.Background()
	a, store := newAuth(t)
	store.SetDelay(20 * time.Millisecond)

	var wg sync.WaitGroup
	users := make([]*models.User, 8)
	errs := make([]error, 8)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = a.Register(ctx, RegisterInput{
				Email: fmt.Sprintf("racer%d@example.com", i), Password: "correct-horse", FirstName: "R", LastName: "C",
			})
		}(i)
	}
	wg.Wait()

	for i, u := range users {
		require.NoError(t, errs[i])
		assert.Equal(t, models.RoleUser, u.Role)
	}
}

func TestCreateUserWithRole(t *testing.T) {
	a, _ := newAuth(t)
	u, err := a.CreateUser(context.Background(), RegisterInput{
		Email: "boss@example.com", Password: "correct-horse", FirstName: "B", LastName: "O",
	}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = a.CreateUser(context.Background(), RegisterInput{
		Email: "x@example.com", Password: "correct-horse", FirstName: "X", LastName: "Y",
	}, "superuser")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
