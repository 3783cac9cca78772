package prometheus

import (
	"strconv"
	"time"
)

var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultExtractDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5}
	DefaultLLMDurationBuckets     = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultTextSizeBuckets        = []float64{1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6, 5e6}
	ScoreBuckets                  = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	GapCountBuckets               = []float64{0, 1, 2, 3, 4, 5, 6, 8, 10, 15}
)

// AuditMetrics holds every RigorAudit metric. All methods are safe on a nil
// receiver so components can run without metrics.
type AuditMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	AuditsTotal        CounterVec
	AuditDuration      HistogramVec
	AuditScore         HistogramVec
	AuditGapCount      HistogramVec
	AuditNotesTotal    CounterVec
	ExtractionDuration HistogramVec
	ExtractionSize     HistogramVec
	PresentCategories  HistogramVec

	EnhancerRequestsTotal CounterVec
	EnhancerDuration      HistogramVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	QueueMessagesTotal   CounterVec
	QueueProcessDuration HistogramVec

	HealthCheckStatus GaugeVec
}

// NewAuditMetrics registers all metrics on collector.
func NewAuditMetrics(c MetricsCollector) *AuditMetrics {
	m := &AuditMetrics{}

	m.HTTPRequestsTotal = c.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = c.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = c.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.AuditsTotal = c.RegisterCounter("audits_total", "Completed audits", "rating", "source", "cached")
	m.AuditDuration = c.RegisterHistogram("audit_duration_seconds", "End-to-end audit duration", DefaultHTTPDurationBuckets, "source")
	m.AuditScore = c.RegisterHistogram("audit_score", "Overall rigor score", ScoreBuckets)
	m.AuditGapCount = c.RegisterHistogram("audit_gap_count", "Critical gaps per audit", GapCountBuckets)
	m.AuditNotesTotal = c.RegisterCounter("audit_collaborator_failures_total", "Collaborator failures reported as audit notes", "component")
	m.ExtractionDuration = c.RegisterHistogram("extraction_duration_seconds", "Feature extraction duration", DefaultExtractDurationBuckets)
	m.ExtractionSize = c.RegisterHistogram("extraction_text_bytes", "Size of extracted text", DefaultTextSizeBuckets)
	m.PresentCategories = c.RegisterHistogram("extraction_present_categories", "Present taxonomy categories per extraction", []float64{0, 2, 4, 8, 12, 16, 20, 25, 30, 36})

	m.EnhancerRequestsTotal = c.RegisterCounter("enhancer_requests_total", "Narrative enhancement requests", "status")
	m.EnhancerDuration = c.RegisterHistogram("enhancer_request_duration_seconds", "Narrative enhancement duration", DefaultLLMDurationBuckets)

	m.CacheHitsTotal = c.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = c.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	m.QueueMessagesTotal = c.RegisterCounter("queue_messages_total", "Queue messages processed", "topic", "status")
	m.QueueProcessDuration = c.RegisterHistogram("queue_process_duration_seconds", "Queue message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.HealthCheckStatus = c.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	return m
}

// ObserveExtraction records one Extract call.
func (m *AuditMetrics) ObserveExtraction(d time.Duration, textLength, presentCategories int) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues().Observe(d.Seconds())
	m.ExtractionSize.WithLabelValues().Observe(float64(textLength))
	m.PresentCategories.WithLabelValues().Observe(float64(presentCategories))
}

// RecordAudit records a finished audit.
func (m *AuditMetrics) RecordAudit(rating, source string, score float64, gaps int, cached bool, d time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "api"
	}
	m.AuditsTotal.WithLabelValues(rating, source, strconv.FormatBool(cached)).Inc()
	m.AuditDuration.WithLabelValues(source).Observe(d.Seconds())
	if !cached {
		m.AuditScore.WithLabelValues().Observe(score)
		m.AuditGapCount.WithLabelValues().Observe(float64(gaps))
	}
}

// RecordCollaboratorFailure counts a degraded step of an audit.
func (m *AuditMetrics) RecordCollaboratorFailure(component string) {
	if m == nil {
		return
	}
	m.AuditNotesTotal.WithLabelValues(component).Inc()
}

func (m *AuditMetrics) RecordEnhancement(success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.EnhancerRequestsTotal.WithLabelValues(status(success)).Inc()
	m.EnhancerDuration.WithLabelValues().Observe(d.Seconds())
}

func (m *AuditMetrics) RecordCacheAccess(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func (m *AuditMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns its release.
func (m *AuditMetrics) TrackInFlight(method string) func() {
	if m == nil {
		return func() {}
	}
	g := m.HTTPActiveRequests.WithLabelValues(method)
	g.Inc()
	return g.Dec
}

func (m *AuditMetrics) RecordQueueMessage(topic string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.QueueMessagesTotal.WithLabelValues(topic, status(success)).Inc()
	m.QueueProcessDuration.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *AuditMetrics) SetHealth(component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
