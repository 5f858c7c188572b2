package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

type ctxKey string

const (
	CtxUserID ctxKey = "uid"
	CtxRole   ctxKey = "role"
)

// TokenValidator resolves a bearer token to its user.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.User, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Authenticate rejects requests without a valid session with 401. On
// success the user, its id and role are stored on the request context.
func Authenticate(log zerolog.Logger, v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				utils.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			u, err := v.Validate(r.Context(), tok)
			if err != nil {
				if errors.Is(err, apperr.ErrAuthenticationFailed) {
					utils.Error(w, http.StatusUnauthorized, "authentication required")
					return
				}
				log.Error().Err(err).Str("path", r.URL.Path).Msg("session validation failed")
				utils.Fail(w, err)
				return
			}

			ctx := utils.WithUser(r.Context(), u)
			ctx = context.WithValue(ctx, CtxUserID, u.ID)
			ctx = context.WithValue(ctx, CtxRole, u.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
