package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/questionbank/questionbank/internal/platform/httpx"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

const bearerPrefix = "Bearer "

// Filter authenticates bearer tokens once per request and binds the
// resulting principal to the request context.
type Filter struct {
	codec    *TokenCodec
	resolver *Resolver
	logger   *slog.Logger
	metrics  rbac.Recorder
}

// NewFilter constructs the authentication filter.
func NewFilter(codec *TokenCodec, resolver *Resolver, logger *slog.Logger, metrics rbac.Recorder) *Filter {
	return &Filter{codec: codec, resolver: resolver, logger: logger, metrics: metrics}
}

// BearerToken extracts the token after the "Bearer " prefix.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// Middleware runs the filter. Requests without a bearer token, or with an
// empty one, continue anonymously; a broken token halts the chain with a 401 envelope.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := BearerToken(r.Header.Get("Authorization"))
		if raw == "" || rbac.PrincipalFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		name, err := f.codec.ParseSubject(raw)
		if err != nil {
			f.reject(w, r, err)
			return
		}
		principal, err := f.resolver.LoadByName(r.Context(), name)
		if err != nil {
			if !errors.Is(err, shared.ErrUserNotFound) && f.logger != nil {
				f.logger.Error("resolve principal", slog.String("user", name), slog.Any("error", err))
			}
			f.reject(w, r, shared.ErrUserNotFound)
			return
		}
		if !f.codec.Validate(raw, principal.Name) {
			if f.logger != nil {
				f.logger.Warn("bearer token rejected after resolution", slog.String("user", name), slog.String("path", r.URL.Path))
			}
			f.record("rejected")
			next.ServeHTTP(w, r)
			return
		}
		f.record("authenticated")
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), principal)))
	})
}

func (f *Filter) reject(w http.ResponseWriter, r *http.Request, err error) {
	env := httpx.EnvelopeFor(err)
	if !shared.IsTokenError(err) {
		env = httpx.ErrorEnvelope{Status: http.StatusUnauthorized, Message: httpx.MsgAuthFailed, ErrorCode: "AUTHENTICATION_FAILED"}
	}
	f.record(outcome(err))
	if f.logger != nil {
		f.logger.Debug("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.WriteEnvelope(w, r, env)
}

func (f *Filter) record(outcome string) {
	if f.metrics != nil {
		f.metrics.RecordAuth("filter", outcome)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		return "expired"
	case errors.Is(err, shared.ErrTokenUnsupported):
		return "unsupported"
	case errors.Is(err, shared.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, shared.ErrTokenInvalid):
		return "invalid"
	default:
		return "failed"
	}
}
