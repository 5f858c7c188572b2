package repository

import (
	"context"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

// UserRepository is the credential store. Only Credentials exposes the
// password hash; every other read returns models.User, which has no hash.
type UserRepository interface {
	Create(ctx context.Context, u models.NewUser) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Credentials(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int, error)
}

// ResourceRepository is the generic data access contract over every kind.
type ResourceRepository interface {
	List(ctx context.Context, k *Kind, q Query) ([]models.Entity, int, error)
	Get(ctx context.Context, k *Kind, id string, fields []string) (models.Entity, error)
	Create(ctx context.Context, k *Kind, in map[string]any, actorID string) (models.Entity, error)
	// Update applies a partial update. When ifUpdatedAt is set and no longer
	// matches the stored updatedAt, it fails with apperr.ErrConflict.
	Update(ctx context.Context, k *Kind, id string, in map[string]any, actorID string, ifUpdatedAt *time.Time) (models.Entity, error)
	Delete(ctx context.Context, k *Kind, id string) error
	// CountRelated counts, per kind, the rows referencing the user.
	CountRelated(ctx context.Context, userID string) (map[string]int, error)
	Ping(ctx context.Context) error
}
