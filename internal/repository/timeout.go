package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

// bounded runs fn under a deadline. A call that overruns it is reported as
// a connectivity failure regardless of what the store returned.
func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	v, err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperr.ErrStoreUnavailable) {
		var zero T
		return zero, apperr.Unavailable(err)
	}
	return v, err
}

type timeoutResources struct {
	next ResourceRepository
	d    time.Duration
}

// WithTimeout bounds every call on r by d.
func WithTimeout(r ResourceRepository, d time.Duration) ResourceRepository {
	return &timeoutResources{next: r, d: d}
}

type listResult struct {
	items []models.Entity
	total int
}

func (t *timeoutResources) List(ctx context.Context, k *Kind, q Query) ([]models.Entity, int, error) {
	res, err := bounded(ctx, t.d, func(ctx context.Context) (listResult, error) {
		items, total, err := t.next.List(ctx, k, q)
		return listResult{items, total}, err
	})
	return res.items, res.total, err
}

func (t *timeoutResources) Get(ctx context.Context, k *Kind, id string, fields []string) (models.Entity, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (models.Entity, error) {
		return t.next.Get(ctx, k, id, fields)
	})
}

func (t *timeoutResources) Create(ctx context.Context, k *Kind, in map[string]any, actorID string) (models.Entity, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (models.Entity, error) {
		return t.next.Create(ctx, k, in, actorID)
	})
}

func (t *timeoutResources) Update(ctx context.Context, k *Kind, id string, in map[string]any, actorID string, ifUpdatedAt *time.Time) (models.Entity, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (models.Entity, error) {
		return t.next.Update(ctx, k, id, in, actorID, ifUpdatedAt)
	})
}

func (t *timeoutResources) Delete(ctx context.Context, k *Kind, id string) error {
	_, err := bounded(ctx, t.d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.Delete(ctx, k, id)
	})
	return err
}

func (t *timeoutResources) CountRelated(ctx context.Context, userID string) (map[string]int, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (map[string]int, error) {
		return t.next.CountRelated(ctx, userID)
	})
}

func (t *timeoutResources) Ping(ctx context.Context) error {
	_, err := bounded(ctx, t.d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.Ping(ctx)
	})
	return err
}

type timeoutUsers struct {
	next UserRepository
	d    time.Duration
}

// WithUserTimeout bounds every call on r by d.
func WithUserTimeout(r UserRepository, d time.Duration) UserRepository {
	return &timeoutUsers{next: r, d: d}
}

func (t *timeoutUsers) Create(ctx context.Context, u models.NewUser) (*models.User, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (*models.User, error) {
		return t.next.Create(ctx, u)
	})
}

func (t *timeoutUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (*models.User, error) {
		return t.next.FindByEmail(ctx, email)
	})
}

func (t *timeoutUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (*models.User, error) {
		return t.next.FindByID(ctx, id)
	})
}

type credentials struct {
	user *models.User
	hash string
}

func (t *timeoutUsers) Credentials(ctx context.Context, email string) (*models.User, string, error) {
	c, err := bounded(ctx, t.d, func(ctx context.Context) (credentials, error) {
		u, h, err := t.next.Credentials(ctx, email)
		return credentials{u, h}, err
	})
	return c.user, c.hash, err
}

func (t *timeoutUsers) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := bounded(ctx, t.d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.TouchLastLogin(ctx, id, at)
	})
	return err
}

func (t *timeoutUsers) Count(ctx context.Context) (int, error) {
	return bounded(ctx, t.d, func(ctx context.Context) (int, error) {
		return t.next.Count(ctx)
	})
}
