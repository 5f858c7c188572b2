package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/middleware"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

const (
	// HeaderDataSource is set to "fallback" when substitute data is served.
	HeaderDataSource = "X-Data-Source"
	// HeaderIfUpdatedAt carries the optional updatedAt precondition of a PATCH.
	HeaderIfUpdatedAt = "X-If-Updated-At"
)

// Fallback serves substitute reads while the store is unreachable.
type Fallback interface {
	List(k *repository.Kind, q repository.Query) ([]models.Entity, int, error)
	Get(k *repository.Kind, id string, fields []string) (models.Entity, error)
}

// ResourceHTTP serves the CRUD endpoints of one kind.
type ResourceHTTP struct {
	kind     *repository.Kind
	repo     repository.ResourceRepository
	fallback Fallback // nil disables degraded reads
	log      zerolog.Logger
}

func NewResourceHTTP(k *repository.Kind, repo repository.ResourceRepository, fb Fallback, log zerolog.Logger) *ResourceHTTP {
	return &ResourceHTTP{kind: k, repo: repo, fallback: fb, log: log}
}

func (h *ResourceHTTP) degraded(w http.ResponseWriter, op string, cause error) {
	h.log.Warn().Err(cause).Str("kind", h.kind.Name).Str("op", op).
		Msg("store unavailable, serving fallback data")
	w.Header().Set(HeaderDataSource, "fallback")
}

// list reads through to the fallback dataset on a connectivity failure.
func (h *ResourceHTTP) list(ctx context.Context, w http.ResponseWriter, q repository.Query) ([]models.Entity, int, error) {
	items, total, err := h.repo.List(ctx, h.kind, q)
	if err == nil || h.fallback == nil || !errors.Is(err, apperr.ErrStoreUnavailable) {
		return items, total, err
	}
	items, total, ferr := h.fallback.List(h.kind, q)
	if ferr != nil {
		return nil, 0, ferr
	}
	h.degraded(w, "list", err)
	return items, total, nil
}

// get reads through to the fallback dataset on a connectivity failure. An id
// the fallback does not hold keeps the original failure: a real row must not
// be reported as missing just because the store is down.
func (h *ResourceHTTP) get(ctx context.Context, w http.ResponseWriter, id string, fields []string) (models.Entity, error) {
	e, err := h.repo.Get(ctx, h.kind, id, fields)
	if err == nil || h.fallback == nil || !errors.Is(err, apperr.ErrStoreUnavailable) {
		return e, err
	}
	fe, ferr := h.fallback.Get(h.kind, id, fields)
	switch {
	case errors.Is(ferr, apperr.ErrNotFound):
		return nil, err
	case ferr != nil:
		return nil, ferr
	}
	h.degraded(w, "get", err)
	return fe, nil
}

func (h *ResourceHTTP) writeList(w http.ResponseWriter, r *http.Request, q repository.Query) {
	items, total, err := h.list(r.Context(), w, q)
	if err != nil {
		fail(h.log, w, r, err)
		return
	}
	limit, offset := repository.ClampPage(q.Limit, q.Offset)
	utils.JSON(w, http.StatusOK, models.List(items, &models.Pagination{Limit: limit, Offset: offset, Total: total}))
}

// GET /api/{kind}
func (h *ResourceHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := utils.ListQuery(r.URL.Query())
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		h.writeList(w, r, q)
	}
}

// GET /api/{kind}/{id}
func (h *ResourceHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := utils.ListQuery(r.URL.Query())
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		e, err := h.get(r.Context(), w, chi.URLParam(r, "id"), q.Fields)
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		utils.OK(w, http.StatusOK, e)
	}
}

// POST /api/{kind}
func (h *ResourceHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if err := utils.DecodeJSON(r, &in); err != nil {
			fail(h.log, w, r, err)
			return
		}
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		e, err := h.repo.Create(r.Context(), h.kind, in, uid)
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		h.log.Info().Str("kind", h.kind.Name).Str("id", e.ID()).Str("user_id", uid).Msg("created")
		utils.OK(w, http.StatusCreated, e)
	}
}

// PATCH /api/{kind}/{id}
func (h *ResourceHTTP) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ifUpdatedAt *time.Time
		if v := r.Header.Get(HeaderIfUpdatedAt); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				fail(h.log, w, r, apperr.Validation(HeaderIfUpdatedAt+" must be an RFC 3339 timestamp"))
				return
			}
			ifUpdatedAt = &t
		}
		var in map[string]any
		if err := utils.DecodeJSON(r, &in); err != nil {
			fail(h.log, w, r, err)
			return
		}
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		e, err := h.repo.Update(r.Context(), h.kind, chi.URLParam(r, "id"), in, uid, ifUpdatedAt)
		if err != nil {
			fail(h.log, w, r, err)
			return
		}
		utils.OK(w, http.StatusOK, e)
	}
}

// DELETE /api/{kind}/{id}
func (h *ResourceHTTP) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.repo.Delete(r.Context(), h.kind, id); err != nil {
			fail(h.log, w, r, err)
			return
		}
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		h.log.Info().Str("kind", h.kind.Name).Str("id", id).Str("user_id", uid).Msg("deleted")
		utils.OK(w, http.StatusOK, map[string]string{"id": id})
	}
}
