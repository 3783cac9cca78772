package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	extractor "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/internal/intelligence/rigor_engine"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/handlers"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/middleware"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

func newTestRouter(t *testing.T) (*gin.Engine, prometheus.MetricsCollector) {
	t.Helper()
	svc, err := audit.NewService(audit.Deps{
		Extractor: extractor.NewExtractor(extractor.MustDefaultTaxonomy()),
		Engine:    rigor_engine.NewEngine(),
	})
	require.NoError(t, err)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "rigor"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewAuditMetrics(collector)

	r := NewRouter(RouterConfig{
		Mode:             gin.TestMode,
		AuditHandler:     handlers.NewAuditHandler(svc, nil),
		HealthHandler:    handlers.NewHealthHandler("test", metrics),
		MetricsCollector: collector,
		Metrics:          metrics,
	})
	return r, collector
}

func request(r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_AuditEndToEnd(t *testing.T) {
	r, _ := newTestRouter(t)

	body := []byte(`{"title":"A randomized controlled trial","text":"Participants were randomly assigned in a double-blind design. Sample size was based on a power analysis. Data were analysed with SPSS and p < 0.05 was significant."}`)
	w := request(r, http.MethodPost, "/api/v1/audits", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got audit.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.Report.Deterministic)
	assert.GreaterOrEqual(t, got.Report.OverallScore, 1.0)
	assert.LessOrEqual(t, got.Report.OverallScore, 10.0)
	assert.True(t, got.Features.Get("randomization").Present)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestNewRouter_SystematicReviewHasNoGaps(t *testing.T) {
	r, _ := newTestRouter(t)

	body := []byte(`{"title":"A systematic review and meta-analysis of exercise","text":"We searched databases."}`)
	w := request(r, http.MethodPost, "/api/v1/audits", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var got audit.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got.Report.CriticalGaps)
	assert.Equal(t, 10.0, got.Report.OverallScore)
	assert.Equal(t, types.RatingHigh, got.Report.RigorRating)
}

func TestNewRouter_EmptyTextIs400(t *testing.T) {
	r, _ := newTestRouter(t)
	w := request(r, http.MethodPost, "/api/v1/audits", []byte(`{"title":"x","text":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"AUDIT_002"`)
}

func TestNewRouter_UnconfiguredStoreIs503(t *testing.T) {
	r, _ := newTestRouter(t)
	assert.Equal(t, http.StatusServiceUnavailable, request(r, http.MethodGet, "/api/v1/audits", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, request(r, http.MethodGet, "/api/v1/dashboard", nil).Code)
}

func TestNewRouter_Extract(t *testing.T) {
	r, _ := newTestRouter(t)
	w := request(r, http.MethodPost, "/api/v1/extract", []byte(`{"text":"Normality was checked with the Shapiro-Wilk test."}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"normality_checks"`)
}

func TestNewRouter_ProbesAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/readyz", nil).Code)

	request(r, http.MethodPost, "/api/v1/extract", []byte(`{"text":"x"}`))
	w := request(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `rigor_http_requests_total{method="POST",path="/api/v1/extract",status_code="200"} 1`)
}

func TestNewRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t)

	w := request(r, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"COMMON_005"`)

	w = request(r, http.MethodDelete, "/api/v1/extract", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNewRouter_NilHandlers(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: gin.TestMode})
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodPost, "/api/v1/audits", []byte(`{}`)).Code)
}

func TestNewRouter_RateLimitAndCORS(t *testing.T) {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://ui.example.com"}
	limiter := middleware.NewTokenBucketLimiter(0.001, 1, 0)

	r := NewRouter(RouterConfig{
		Mode:          gin.TestMode,
		HealthHandler: handlers.NewHealthHandler("v", nil),
		CORS:          &cors,
		RateLimit:     limiter,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anything", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(r, http.MethodGet, "/api/v1/anything", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/healthz", nil).Code)
}
