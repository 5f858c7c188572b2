package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/config"
	"github.com/kaiser100010/grc-system-sub002/internal/handlers"
	"github.com/kaiser100010/grc-system-sub002/internal/middleware"
	"github.com/kaiser100010/grc-system-sub002/internal/policy"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/service"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth      *service.AuthService
	Authz     *policy.Authorizer
	Resources repository.ResourceRepository
	Fallback  handlers.Fallback // nil disables degraded reads
}

func New(log zerolog.Logger, cfg *config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.HeaderIfUpdatedAt},
		ExposedHeaders:   []string{handlers.HeaderDataSource},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handlers.NotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handlers.MethodNotAllowed(w)
	})

	// Health
	r.Get("/health", handlers.Health(log, d.Resources))

	ah := handlers.NewAuthHTTP(d.Auth, log)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", ah.Register())
		r.Post("/login", ah.Login())
		r.Post("/logout", ah.Logout())
		r.With(middleware.Authenticate(log, d.Auth)).Get("/me", ah.Me())
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(log, d.Auth))
		allow := func(kind, action string) func(http.Handler) http.Handler {
			return middleware.RequirePermission(d.Authz, kind, action)
		}

		uh := handlers.NewUserHTTP(d.Resources, d.Fallback, log)
		r.Route("/api/users", func(r chi.Router) {
			r.With(allow(repository.KindUsers, policy.ActionList)).Get("/", uh.List())
			r.With(allow(repository.KindUsers, policy.ActionList)).Get("/active", uh.Active())
			r.Route("/{id}", func(r chi.Router) {
				r.With(middleware.RequireSelfOrPermission(d.Authz, repository.KindUsers, policy.ActionGet)).Get("/", uh.Get())
				r.With(allow(repository.KindUsers, policy.ActionUpdate)).Patch("/", uh.Update())
				r.With(allow(repository.KindUsers, policy.ActionDelete)).Delete("/", uh.Delete())
			})
		})

		for _, k := range repository.Kinds() {
			if k.Name == repository.KindUsers {
				continue
			}
			h := handlers.NewResourceHTTP(k, d.Resources, d.Fallback, log)
			r.Route("/api/"+k.Name, func(r chi.Router) {
				r.With(allow(k.Name, policy.ActionList)).Get("/", h.List())
				r.With(allow(k.Name, policy.ActionCreate)).Post("/", h.Create())
				r.Route("/{id}", func(r chi.Router) {
					r.With(allow(k.Name, policy.ActionGet)).Get("/", h.Get())
					r.With(allow(k.Name, policy.ActionUpdate)).Patch("/", h.Update())
					r.With(allow(k.Name, policy.ActionDelete)).Delete("/", h.Delete())
				})
			})
		}

		rh := handlers.NewReportsHTTP(d.Resources, d.Fallback, d.Authz, log)
		r.Get("/api/reports/summary", rh.Summary())
	})

	return r
}
