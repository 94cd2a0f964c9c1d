package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/questionbank/questionbank/internal/observability"
	"github.com/questionbank/questionbank/internal/platform/httpx"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// CORS headers accepted from and exposed to browser clients.
var (
	corsAllowedHeaders = []string{"Content-Type", "Accept", "Authorization", "X-Requested-With", "Cache-Control", "X-CSRF-TOKEN"}
	corsExposedHeaders = []string{"Authorization", "Content-Disposition"}
)

// MiddlewareStack installs the API middleware chain that runs before
// authentication.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	production := cfg.Config != nil && cfg.Config.IsProduction()
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		IsDevelopment:         !production,
	})

	timeout := 30 * time.Second
	apiLimit := 120
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.APIRateLimit > 0 {
			apiLimit = cfg.Config.APIRateLimit
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Error(w, r, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		CORS(cfg.Config),
		middleware.Compress(5),
		httprate.Limit(apiLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Error(w, r, http.StatusTooManyRequests, "Too many requests")
			})),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// CORS builds the cross-origin handler from configuration. Preflight
// requests are answered here and never reach the authorization policy.
func CORS(cfg *Config) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:4200", "http://127.0.0.1:4200"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   corsAllowedHeaders,
		ExposedHeaders:   corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           3600,
	}
	if cfg != nil {
		if len(cfg.CORSAllowedOrigins) > 0 {
			opts.AllowedOrigins = cfg.CORSAllowedOrigins
		}
		if len(cfg.CORSAllowedMethods) > 0 {
			opts.AllowedMethods = cfg.CORSAllowedMethods
		}
		if cfg.CORSMaxAge > 0 {
			opts.MaxAge = cfg.CORSMaxAge
		}
	}
	return cors.Handler(opts)
}

// LoginLimiter throttles login attempts per client address.
func LoginLimiter(cfg *Config) func(http.Handler) http.Handler {
	limit := 20
	if cfg != nil && cfg.LoginRateLimit > 0 {
		limit = cfg.LoginRateLimit
	}
	return httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Error(w, r, http.StatusTooManyRequests, "Too many login attempts")
		}))
}
