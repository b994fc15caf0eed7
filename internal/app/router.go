package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripcast/tripcast-admin/internal/auth"
	"github.com/tripcast/tripcast-admin/internal/observability"
	"github.com/tripcast/tripcast-admin/internal/platform/httpx"
	"github.com/tripcast/tripcast-admin/internal/rbac"
	"github.com/tripcast/tripcast-admin/jobs"
)

// RouterParams collects everything NewRouter needs. Optional fields may be
// nil; the router simply skips the corresponding mounts.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	RBAC        rbac.Middleware
	AuthHandler *auth.Handler
	RBACHandler *rbac.Handler
	JobsHandler *jobs.Handler
}

// NewRouter builds the admin API router. The access decision middleware is
// part of the global stack, so everything mounted here is already behind
// authentication and permission checks unless listed as a public path.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  p.Logger,
		Config:  p.Config,
		Metrics: p.Metrics,
		RBAC:    p.RBAC,
	}) {
		r.Use(mw)
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"service": "tripcast-admin"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api/admin", func(api chi.Router) {
		if p.AuthHandler != nil {
			api.Route("/auth", p.AuthHandler.MountRoutes)
		}
		if p.RBACHandler != nil {
			api.Route("/me", p.RBACHandler.MountSelfRoutes)
			api.Route("/rbac", func(rr chi.Router) {
				p.RBACHandler.MountRoutes(rr)
				if p.JobsHandler != nil {
					p.JobsHandler.MountRoutes(rr)
				}
			})
		}
	})

	return r
}
