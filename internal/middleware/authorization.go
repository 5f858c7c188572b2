package middleware

import (
	"net/http"

	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

// Authorizer decides (role, kind, action).
type Authorizer interface {
	Authorize(role, kind, action string) bool
}

// RequirePermission allows the request only if the current role may perform
// action on kind.
func RequirePermission(a Authorizer, kind, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := utils.GetString(r.Context(), CtxRole)
			if !a.Authorize(role, kind, action) {
				utils.Error(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
