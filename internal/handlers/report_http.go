package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/middleware"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

type ReportsHTTP struct {
	repo     repository.ResourceRepository
	fallback Fallback
	authz    middleware.Authorizer
	log      zerolog.Logger
}

func NewReportsHTTP(repo repository.ResourceRepository, fb Fallback, authz middleware.Authorizer, log zerolog.Logger) *ReportsHTTP {
	return &ReportsHTTP{repo: repo, fallback: fb, authz: authz, log: log}
}

type summaryCounter struct {
	key    string
	kind   string
	filter []repository.Predicate
}

func eq(field string, v any) []repository.Predicate {
	return []repository.Predicate{{Field: field, Op: repository.OpEq, Value: v}}
}

var summaryCounters = []summaryCounter{
	{"employees", repository.KindEmployees, nil},
	{"pendingTasks", repository.KindTasks, eq("status", "pending")},
	{"openIncidents", repository.KindIncidents, eq("status", "open")},
	{"criticalIncidents", repository.KindIncidents, eq("severity", "critical")},
	{"identifiedRisks", repository.KindRisks, eq("status", "identified")},
	{"implementedControls", repository.KindControls, eq("status", "implemented")},
	{"activePolicies", repository.KindPolicies, eq("status", "active")},
	{"pendingEvidence", repository.KindEvidence, eq("status", "pending")},
}

// GET /api/reports/summary
// Counts the caller may list; kinds the role cannot list are omitted.
func (h *ReportsHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, _ := utils.GetString(r.Context(), middleware.CtxRole)
		byKind := map[string]*ResourceHTTP{}
		out := map[string]int{}
		for _, c := range summaryCounters {
			if !h.authz.Authorize(role, c.kind, "list") {
				continue
			}
			rh, ok := byKind[c.kind]
			if !ok {
				rh = NewResourceHTTP(repository.MustKind(c.kind), h.repo, h.fallback, h.log)
				byKind[c.kind] = rh
			}
			_, total, err := rh.list(r.Context(), w, repository.Query{Filter: c.filter, Fields: []string{"id"}, Limit: 1})
			if err != nil {
				fail(h.log, w, r, err)
				return
			}
			out[c.key] = total
		}
		utils.OK(w, http.StatusOK, out)
	}
}
