// Package memory is an in-process implementation of the credential store
// and the resource repository. It backs STORE=memory and the tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

// ErrOffline is the cause reported while the store is switched offline.
var ErrOffline = errors.New("memory store offline")

type Store struct {
	mu      sync.RWMutex
	tables  map[string]map[string]models.Entity
	byEmail map[string]string // lower(email) -> user id

	now     func() time.Time
	offline bool
	delay   time.Duration
}

func New() *Store {
	s := &Store{
		tables:  map[string]map[string]models.Entity{},
		byEmail: map[string]string{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, k := range repository.Kinds() {
		s.tables[k.Name] = map[string]models.Entity{}
	}
	return s
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetOffline makes every call fail as a connectivity failure.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// SetDelay makes every call wait d (or until ctx is done) before running.
func (s *Store) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *Store) enter(ctx context.Context) error {
	s.mu.RLock()
	offline, delay := s.offline, s.delay
	s.mu.RUnlock()
	if offline {
		return apperr.Unavailable(ErrOffline)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return apperr.Unavailable(ctx.Err())
		}
	}
	return ctx.Err()
}

func newID() string { return uuid.NewString() }

// ---------------------------------------------------------------------------
// Credential store
// ---------------------------------------------------------------------------

// Users is the credential store view of a Store.
type Users struct{ s *Store }

func (s *Store) Users() *Users { return &Users{s: s} }

func (u *Users) Create(ctx context.Context, in models.NewUser) (*models.User, error) {
	s := u.s
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return nil, apperr.Conflict("email already registered")
	}
	now := s.now()
	e := models.Entity{
		"id":            newID(),
		"email":         email,
		"passwordHash":  in.PasswordHash,
		"firstName":     in.FirstName,
		"lastName":      in.LastName,
		"role":          in.Role,
		"isActive":      true,
		"emailVerified": false,
		"lastLogin":     nil,
		"createdAt":     now,
		"updatedAt":     now,
	}
	s.tables[repository.KindUsers][e.ID()] = e
	s.byEmail[email] = e.ID()
	return toUser(e), nil
}

func (u *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	usr, _, err := u.Credentials(ctx, email)
	return usr, err
}

func (u *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	s := u.s
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tables[repository.KindUsers][id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return toUser(e), nil
}

func (u *Users) Credentials(ctx context.Context, email string) (*models.User, string, error) {
	s := u.s
	if err := s.enter(ctx); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, "", apperr.NotFound("user not found")
	}
	e := s.tables[repository.KindUsers][id]
	hash, _ := e["passwordHash"].(string)
	return toUser(e), hash, nil
}

func (u *Users) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s := u.s
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tables[repository.KindUsers][id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	next := e.Clone()
	next["lastLogin"] = at.UTC()
	s.tables[repository.KindUsers][id] = next
	return nil
}

func (u *Users) Count(ctx context.Context) (int, error) {
	s := u.s
	if err := s.enter(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[repository.KindUsers]), nil
}

func toUser(e models.Entity) *models.User {
	u := &models.User{}
	u.ID, _ = e["id"].(string)
	u.Email, _ = e["email"].(string)
	u.FirstName, _ = e["firstName"].(string)
	u.LastName, _ = e["lastName"].(string)
	u.Role, _ = e["role"].(string)
	u.IsActive, _ = e["isActive"].(bool)
	u.EmailVerified, _ = e["emailVerified"].(bool)
	if t, ok := e["lastLogin"].(time.Time); ok {
		u.LastLogin = &t
	}
	u.CreatedAt, _ = e["createdAt"].(time.Time)
	u.UpdatedAt, _ = e["updatedAt"].(time.Time)
	return u
}
