package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/internal/observability"
	"github.com/questionbank/questionbank/internal/platform/httpx"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/roles"
	"github.com/questionbank/questionbank/internal/users"
	"github.com/questionbank/questionbank/jobs"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Metrics            *observability.Metrics
	Filter             *auth.Filter
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	HealthChecks       map[string]HealthCheck
}

// NewRouter constructs the API router. The authentication filter runs on
// every route, then the path policy, then the handlers.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !InTestMode() {
		r.Use(chimw.Logger)
	}
	if params.Filter != nil {
		r.Use(params.Filter.Middleware)
	}
	r.Use(params.RBACMiddleware.Enforce())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, r, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/actuator/health", healthHandler(params.Logger, params.HealthChecks))

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})
	return r
}

// NewOpsRouter serves metrics and queue health on the internal listener.
func NewOpsRouter(metrics *observability.Metrics, jobHandler *jobs.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if jobHandler != nil {
		r.Route("/jobs", jobHandler.MountRoutes)
	}
	return r
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		res := healthResponse{Status: "UP", Components: map[string]string{}}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				if logger != nil {
					logger.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
				}
				res.Components[name] = "DOWN"
				res.Status = "DOWN"
				continue
			}
			res.Components[name] = "UP"
		}
		status := http.StatusOK
		if res.Status != "UP" {
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, res)
	}
}
