package utils

import (
	"context"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

type CtxKey string

const ctxUser CtxKey = "user"

func GetString(ctx context.Context, key any) (string, bool) {
	v := ctx.Value(key)
	s, ok := v.(string)
	return s, ok
}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxUser).(*models.User)
	return u, ok && u != nil
}
