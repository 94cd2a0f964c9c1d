package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/questionbank/questionbank/internal/platform/httpx"
	"github.com/questionbank/questionbank/internal/shared"
)

// Recorder receives authentication and authorization outcomes for metrics.
type Recorder interface {
	RecordAuth(stage, outcome string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Policy  *Policy
	Logger  *slog.Logger
	Metrics Recorder
}

// Enforce applies the path-level policy before any route handler runs.
func (m Middleware) Enforce() func(http.Handler) http.Handler {
	policy := m.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			decision, rule := policy.Decide(r.Method, r.URL.Path, principal)
			m.record("policy", decision.String())
			switch decision {
			case Allow:
				next.ServeHTTP(w, r)
			case Unauthenticated:
				m.debug("policy rejected anonymous request", r, rule)
				httpx.RespondError(w, r, shared.ErrAuthenticationRequired)
			default:
				if m.Logger != nil {
					m.Logger.Warn("policy denied request",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("principal", principal.Name),
						slog.Any("required", rule.Roles))
				}
				httpx.RespondError(w, r, shared.ErrAccessDenied)
			}
		})
	}
}

// RequireAny ensures the current principal has at least one of the roles.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Require(r.Context(), roles...); err != nil {
				m.record("guard", "denied")
				httpx.RespondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require is the endpoint-level guard evaluated at handler entry. It holds
// independently of the path policy.
func Require(ctx context.Context, roles ...string) error {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return shared.ErrAuthenticationRequired
	}
	if len(roles) == 0 || principal.HasAnyRole(roles...) {
		return nil
	}
	return shared.ErrAccessDenied
}

func (m Middleware) record(stage, outcome string) {
	if m.Metrics != nil {
		m.Metrics.RecordAuth(stage, outcome)
	}
}

func (m Middleware) debug(msg string, r *http.Request, rule Rule) {
	if m.Logger == nil {
		return
	}
	m.Logger.Debug(msg,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("rule", rule.Pattern))
}
