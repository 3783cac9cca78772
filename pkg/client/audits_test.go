package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

const recordJSON = `{
  "id": "a-1",
  "title": "Exercise and sleep",
  "text_hash": "h",
  "features": {"randomization": {"present": true, "count": 1, "unique_matches": ["randomly assigned"], "examples": []}},
  "report": {"overall_score": 7.5, "rigor_rating": "Medium", "critical_gaps": [{"message": "No sample size justification", "evidence": ""}],
             "strengths": [], "actionable_recommendations": [], "deterministic": true},
  "created_at": "2024-05-01T10:00:00Z",
  "cached": %s
}`

func record(cached bool) string {
	return strings.Replace(recordJSON, "%s", map[bool]string{true: "true", false: "false"}[cached], 1)
}

func TestAudits_Create(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/audits", r.URL.Path)
		var body CreateAuditRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Exercise and sleep", body.Title)
		assert.True(t, body.Enhance)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, record(false))
	})

	res, err := c.Audits().Create(context.Background(), &CreateAuditRequest{
		Title: "Exercise and sleep", Text: "Participants were randomly assigned.", Enhance: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a-1", res.ID)
	assert.False(t, res.Cached)
	assert.Equal(t, 7.5, res.Report.OverallScore)
	assert.Equal(t, audit.RatingMedium, res.Report.RigorRating)
	assert.True(t, res.Features.Has("randomization"))
}

func TestAudits_Create_EmptyText(t *testing.T) {
	c, _ := NewClient("http://api.example.com")
	_, err := c.Audits().Create(context.Background(), &CreateAuditRequest{Title: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditEmptyText))
}

func TestAudits_CreateFromJATS(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/audits/jats", r.URL.Path)
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "PMC42.xml", r.URL.Query().Get("filename"))
		assert.Equal(t, "true", r.URL.Query().Get("enhance"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "<article/>", string(data))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, record(true))
	})

	res, err := c.Audits().CreateFromJATS(context.Background(), strings.NewReader("<article/>"), "PMC42.xml", true)
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

func TestAudits_Upload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/audits/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "paper.md", fh.Filename)
		assert.Equal(t, "# Methods\nRandomized.", string(data))
		assert.Equal(t, "Override", r.FormValue("title"))
		assert.Equal(t, "true", r.FormValue("enhance"))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, record(false))
	})

	res, err := c.Audits().Upload(context.Background(), &UploadRequest{
		Filename: "paper.md", Data: []byte("# Methods\nRandomized."), Title: "Override", Enhance: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a-1", res.ID)

	_, err = c.Audits().Upload(context.Background(), &UploadRequest{})
	assert.Error(t, err)
}

func TestAudits_Get(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/audits/missing" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"code":"AUDIT_001","message":"audit not found"}`)
			return
		}
		assert.Equal(t, "/api/v1/audits/a-1", r.URL.Path)
		io.WriteString(w, record(false))
	})

	res, err := c.Audits().Get(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "Exercise and sleep", res.Title)

	_, err = c.Audits().Get(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "AUDIT_001", apiErr.Code)

	_, err = c.Audits().Get(context.Background(), "")
	assert.Error(t, err)
}

func TestAudits_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/audits", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		io.WriteString(w, `{"items":[{"id":"a-1","title":"t","score":9,"rating":"High","gap_count":0,"gaps":[],"present_categories":[],"enhanced":false,"created_at":"2024-05-01T10:00:00Z"}],"total":11,"limit":5,"offset":10}`)
	})

	res, err := c.Audits().List(context.Background(), &ListOptions{Limit: 5, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, audit.RatingHigh, res.Items[0].Rating)
}

func TestAudits_Search(t *testing.T) {
	minScore := 6.5
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/audits/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "sleep", q.Get("q"))
		assert.Equal(t, "Low", q.Get("rating"))
		assert.Equal(t, "blinding", q.Get("category"))
		assert.Equal(t, "6.5", q.Get("min_score"))
		assert.Empty(t, q.Get("max_score"))
		assert.Empty(t, q.Get("limit"))
		io.WriteString(w, `{"total":0,"items":[]}`)
	})

	res, err := c.Audits().Search(context.Background(), &SearchOptions{
		Query: "sleep", Rating: audit.RatingLow, Category: "blinding", MinScore: &minScore,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestAudits_DashboardAndExtract(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/dashboard":
			assert.Equal(t, "3", r.URL.Query().Get("top"))
			io.WriteString(w, `{"total_audits":2,"average_score":8.25,"ratings":[{"key":"High","count":2}],"top_gaps":[],"top_categories":[]}`)
		case "/api/v1/extract":
			io.WriteString(w, `{"features":{"software":{"present":true,"count":1,"unique_matches":["spss"],"examples":[]}},"present_categories":["software"]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	stats, err := c.Audits().Dashboard(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAudits)
	assert.Equal(t, 8.25, stats.AverageScore)

	ext, err := c.Audits().Extract(context.Background(), "Analyses used SPSS.")
	require.NoError(t, err)
	assert.Equal(t, []string{"software"}, ext.PresentCategories)
	assert.True(t, ext.Features.Has("software"))
}
