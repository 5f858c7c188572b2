package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/middleware"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/service"
	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

// Authenticator is the subset of service.AuthService the auth endpoints use.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	Logout(ctx context.Context, token string) error
}

type AuthHTTP struct {
	svc Authenticator
	log zerolog.Logger
}

func NewAuthHTTP(s Authenticator, log zerolog.Logger) *AuthHTTP {
	return &AuthHTTP{svc: s, log: log}
}

// POST /api/auth/register
func (h *AuthHTTP) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.RegisterInput
		if err := utils.DecodeJSON(r, &in); err != nil {
			fail(h.log, w, r, err)
			return
		}
		u, err := h.svc.Register(r.Context(), in)
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		h.log.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user registered")
		utils.OK(w, http.StatusCreated, u.Summary())
	}
}

// POST /api/auth/login
func (h *AuthHTTP) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := utils.DecodeJSON(r, &in); err != nil {
			fail(h.log, w, r, err)
			return
		}
		if in.Email == "" || in.Password == "" {
			fail(h.log, w, r, apperr.Validation("email and password are required"))
			return
		}

		s, u, err := h.svc.Login(r.Context(), in.Email, in.Password)
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		utils.OK(w, http.StatusOK, map[string]any{
			"token":     s.Token,
			"expiresAt": s.ExpiresAt.Format(time.RFC3339),
			"user":      u.Summary(),
		})
	}
}

// POST /api/auth/logout
func (h *AuthHTTP) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = h.svc.Logout(r.Context(), middleware.BearerToken(r))
		utils.OK(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

// GET /api/auth/me
func (h *AuthHTTP) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := utils.UserFrom(r.Context())
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		utils.OK(w, http.StatusOK, u)
	}
}
