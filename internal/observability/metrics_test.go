package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/questionbank/questionbank/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jm := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jm.Track("auth:audit").End(nil)

	body := scrape(t, metrics)
	assert.Contains(t, body, `questionbank_jobs_total{job="auth:audit",status="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	if !strings.Contains(body, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	assert.Contains(t, body, "http_request_duration_seconds_bucket{route=\"/test\"")
}

func TestRecordAuth(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordAuth("filter", "expired")
	metrics.RecordAuth("filter", "expired")
	metrics.RecordAuth("policy", "forbidden")

	body := scrape(t, metrics)
	assert.Contains(t, body, `questionbank_auth_outcomes_total{outcome="expired",stage="filter"} 2`)
	assert.Contains(t, body, `questionbank_auth_outcomes_total{outcome="forbidden",stage="policy"} 1`)

	var nilMetrics *Metrics
	nilMetrics.RecordAuth("filter", "expired")
}
