package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/middleware"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

// activeFields is the minimal projection of GET /api/users/active.
var activeFields = []string{"email", "firstName", "lastName", "role"}

// UserHTTP adds the user-specific endpoints on top of the generic resource
// handler for the users kind.
type UserHTTP struct {
	*ResourceHTTP
}

func NewUserHTTP(repo repository.ResourceRepository, fb Fallback, log zerolog.Logger) *UserHTTP {
	return &UserHTTP{ResourceHTTP: NewResourceHTTP(repository.MustKind(repository.KindUsers), repo, fb, log)}
}

// GET /api/users/active
func (h *UserHTTP) Active() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := utils.ListQuery(r.URL.Query())
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		q.Fields = activeFields
		q.Filter = append(q.Filter, repository.Predicate{Field: "isActive", Op: repository.OpEq, Value: true})
		h.writeList(w, r, q)
	}
}

// GET /api/users/{id} returns the user plus, per kind, how many rows
// reference it.
func (h *UserHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		u, err := h.get(r.Context(), w, id, nil)
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		counts := map[string]int{}
		if w.Header().Get(HeaderDataSource) == "" {
			counts, err = h.repo.CountRelated(r.Context(), id)
			if err != nil {
				fail(h.log, w, r, err)
				return
			}
		}
		u["counts"] = counts
		utils.OK(w, http.StatusOK, u)
	}
}

// DELETE /api/users/{id}
func (h *UserHTTP) Delete() http.HandlerFunc {
	del := h.ResourceHTTP.Delete()
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if uid != "" && uid == chi.URLParam(r, "id") {
			fail(h.log, w, r, apperr.Validation("you cannot delete your own account"))
			return
		}
		del(w, r)
	}
}
