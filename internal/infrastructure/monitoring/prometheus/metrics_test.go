package prometheus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestAuditMetrics(t *testing.T) (*AuditMetrics, MetricsCollector) {
	c := newTestCollector(t)
	return NewAuditMetrics(c), c
}

func TestRecordAudit(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	m.RecordAudit("Medium", "", 7, 2, false, 120*time.Millisecond)
	m.RecordAudit("Medium", "", 7, 2, true, time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_audits_total{cached="false",rating="Medium",source="api"} 1`)
	assert.Contains(t, out, `test_unit_audits_total{cached="true",rating="Medium",source="api"} 1`)
	assert.Contains(t, out, `test_unit_audit_duration_seconds_count{source="api"} 2`)
	// Cached hits do not skew the score distribution.
	assert.Contains(t, out, "test_unit_audit_score_count 1")
	assert.Contains(t, out, "test_unit_audit_gap_count_sum 2")
}

func TestObserveExtraction(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	m.ObserveExtraction(2*time.Millisecond, 4096, 12)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_unit_extraction_duration_seconds_count 1")
	assert.Contains(t, out, "test_unit_extraction_text_bytes_sum 4096")
	assert.Contains(t, out, "test_unit_extraction_present_categories_sum 12")
}

func TestRecordEnhancementAndCollaborators(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	m.RecordEnhancement(true, time.Second)
	m.RecordEnhancement(false, time.Second)
	m.RecordCollaboratorFailure("index")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_enhancer_requests_total{status="success"} 1`)
	assert.Contains(t, out, `test_unit_enhancer_requests_total{status="failure"} 1`)
	assert.Contains(t, out, `test_unit_audit_collaborator_failures_total{component="index"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	m.RecordCacheAccess("report", true)
	m.RecordCacheAccess("report", false)
	m.RecordCacheAccess("report", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_cache_hits_total{cache="report"} 1`)
	assert.Contains(t, out, `test_unit_cache_misses_total{cache="report"} 2`)
}

func TestRecordHTTPRequestAndInFlight(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	done := m.TrackInFlight("POST")
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_http_active_requests{method="POST"} 1`)
	done()
	m.RecordHTTPRequest("POST", "/api/v1/audits", 201, 30*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_active_requests{method="POST"} 0`)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/audits",status_code="201"} 1`)
}

func TestQueueAndHealth(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	m.RecordQueueMessage("rigor.audit.requests", false, 10*time.Millisecond)
	m.SetHealth("postgres", true)
	m.SetHealth("redis", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_queue_messages_total{status="failure",topic="rigor.audit.requests"} 1`)
	assert.Contains(t, out, `test_unit_health_check_status{component="postgres"} 1`)
	assert.Contains(t, out, `test_unit_health_check_status{component="redis"} 0`)
}

func TestNilAuditMetrics(t *testing.T) {
	var m *AuditMetrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction(time.Millisecond, 1, 1)
		m.RecordAudit("High", "cli", 10, 0, false, time.Millisecond)
		m.RecordEnhancement(true, time.Millisecond)
		m.RecordCacheAccess("report", true)
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.TrackInFlight("GET")()
		m.RecordQueueMessage("t", true, time.Millisecond)
		m.RecordCollaboratorFailure("cache")
		m.SetHealth("x", true)
	})
}

func TestConcurrentRecording(t *testing.T) {
	m, c := newTestAuditMetrics(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_http_requests_total{method="GET",path="/healthz",status_code="200"} 1000`)
}
