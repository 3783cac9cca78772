package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/handlers"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/middleware"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted; nil optional
// middleware is skipped.
type RouterConfig struct {
	Mode string // gin mode: "debug", "release" or "test"

	// Handlers
	AuditHandler  *handlers.AuditHandler
	HealthHandler *handlers.HealthHandler

	// Middleware
	CORS      *middleware.CORSConfig
	RateLimit middleware.RateLimiter
	Logging   middleware.LoggingConfig

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.AuditMetrics
}

// NewRouter builds the gin engine: global middleware, probes, /metrics and
// the /api/v1 group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Logging.SkipPaths == nil && cfg.Logging.SlowThreshold == 0 {
		cfg.Logging = middleware.DefaultLoggingConfig()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// --- Global middleware ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(cfg.RateLimit, middleware.DefaultRateLimitConfig()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{
			Code:      errors.ErrCodeNotFound.String(),
			Message:   "route not found",
			Detail:    c.Request.URL.Path,
			RequestID: middleware.GetRequestID(c),
		})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ErrorResponse{
			Code:      errors.ErrCodeBadRequest.String(),
			Message:   "method not allowed",
			Detail:    c.Request.Method + " " + c.Request.URL.Path,
			RequestID: middleware.GetRequestID(c),
		})
	})

	// --- Probes ---
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}

	// --- Metrics ---
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	// --- API v1 ---
	v1 := r.Group("/api/v1")
	if cfg.AuditHandler != nil {
		cfg.AuditHandler.RegisterRoutes(v1)
	}

	return r
}
