package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count, latency and in-flight requests. The path
// label is the matched route template so ids do not explode cardinality;
// unmatched requests are labelled "unmatched".
func Metrics(m *prometheus.AuditMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		done := m.TrackInFlight(c.Request.Method)
		start := time.Now()

		c.Next()

		done()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
