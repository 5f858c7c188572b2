package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

// RequireSelfOrPermission allows if {id} == ctx user id OR the role may
// perform action on kind.
func RequireSelfOrPermission(a Authorizer, kind, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxUID, _ := utils.GetString(r.Context(), CtxUserID)
			ctxRole, _ := utils.GetString(r.Context(), CtxRole)
			pathID := chi.URLParam(r, "id")

			if a.Authorize(ctxRole, kind, action) {
				next.ServeHTTP(w, r)
				return
			}
			// otherwise only self
			if ctxUID != "" && pathID == ctxUID {
				next.ServeHTTP(w, r)
				return
			}
			utils.Error(w, http.StatusForbidden, "forbidden")
		})
	}
}
