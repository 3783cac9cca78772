package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

const apiPrefix = "/api/v1"

// AuditsClient calls the audit endpoints.
type AuditsClient struct {
	client *Client
}

// CreateAuditRequest is the body of POST /api/v1/audits.
type CreateAuditRequest struct {
	Title   string `json:"title,omitempty"`
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Enhance bool   `json:"enhance,omitempty"`
}

// AuditResult is a finished audit. Cached is true when the server returned
// an earlier identical audit.
type AuditResult struct {
	audit.Record
	Cached bool `json:"cached"`
}

// AuditList is one page of stored audits.
type AuditList struct {
	Items  []audit.Summary `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// SearchResult is one page of indexed audits.
type SearchResult struct {
	Total int64           `json:"total"`
	Items []audit.Summary `json:"items"`
}

// ExtractResult is the response of POST /api/v1/extract.
type ExtractResult struct {
	Features          audit.FeatureMap `json:"features"`
	PresentCategories []string         `json:"present_categories"`
}

// ListOptions pages through stored audits. Zero values use server defaults.
type ListOptions struct {
	Limit  int
	Offset int
}

// SearchOptions filters the audit index. Zero values disable a filter.
type SearchOptions struct {
	Query    string
	Rating   audit.Rating
	Category string
	Gap      string
	MinScore *float64
	MaxScore *float64
	Limit    int
	Offset   int
}

// UploadRequest is a manuscript file for POST /api/v1/audits/upload.
type UploadRequest struct {
	Filename string
	Data     []byte
	Title    string
	Enhance  bool
}

// Create audits raw Methods text.
func (a *AuditsClient) Create(ctx context.Context, req *CreateAuditRequest) (*AuditResult, error) {
	if req == nil || req.Text == "" {
		return nil, errors.New(errors.ErrCodeAuditEmptyText, "text is required")
	}
	var out AuditResult
	if err := a.client.post(ctx, apiPrefix+"/audits", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFromJATS audits a JATS XML article. filename names the archived copy
// and may be empty.
func (a *AuditsClient) CreateFromJATS(ctx context.Context, r io.Reader, filename string, enhance bool) (*AuditResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read article: %w", err)
	}
	q := url.Values{}
	if filename != "" {
		q.Set("filename", filename)
	}
	if enhance {
		q.Set("enhance", "true")
	}
	path := apiPrefix + "/audits/jats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out AuditResult
	body := &payload{contentType: "application/xml", data: data}
	if err := a.client.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload audits a manuscript file (xml, md, txt or pdf).
func (a *AuditsClient) Upload(ctx context.Context, req *UploadRequest) (*AuditResult, error) {
	if req == nil || req.Filename == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "filename is required")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(req.Data); err != nil {
		return nil, err
	}
	if req.Title != "" {
		if err := mw.WriteField("title", req.Title); err != nil {
			return nil, err
		}
	}
	if req.Enhance {
		if err := mw.WriteField("enhance", "true"); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out AuditResult
	body := &payload{contentType: mw.FormDataContentType(), data: buf.Bytes()}
	if err := a.client.do(ctx, http.MethodPost, apiPrefix+"/audits/upload", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a stored audit by id.
func (a *AuditsClient) Get(ctx context.Context, id string) (*AuditResult, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "id is required")
	}
	var out AuditResult
	if err := a.client.get(ctx, apiPrefix+"/audits/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List pages through stored audits, newest first.
func (a *AuditsClient) List(ctx context.Context, opts *ListOptions) (*AuditList, error) {
	q := url.Values{}
	if opts != nil {
		setInt(q, "limit", opts.Limit)
		setInt(q, "offset", opts.Offset)
	}
	var out AuditList
	if err := a.client.get(ctx, withQuery(apiPrefix+"/audits", q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search queries the audit index.
func (a *AuditsClient) Search(ctx context.Context, opts *SearchOptions) (*SearchResult, error) {
	q := url.Values{}
	if opts != nil {
		setString(q, "q", opts.Query)
		setString(q, "rating", string(opts.Rating))
		setString(q, "category", opts.Category)
		setString(q, "gap", opts.Gap)
		setFloat(q, "min_score", opts.MinScore)
		setFloat(q, "max_score", opts.MaxScore)
		setInt(q, "limit", opts.Limit)
		setInt(q, "offset", opts.Offset)
	}
	var out SearchResult
	if err := a.client.get(ctx, withQuery(apiPrefix+"/audits/search", q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard returns aggregate statistics over every indexed audit. top
// bounds the gap and category lists; zero uses the server default.
func (a *AuditsClient) Dashboard(ctx context.Context, top int) (*audit.DashboardStats, error) {
	q := url.Values{}
	setInt(q, "top", top)
	var out audit.DashboardStats
	if err := a.client.get(ctx, withQuery(apiPrefix+"/dashboard", q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Extract runs the feature extractor on text without auditing it.
func (a *AuditsClient) Extract(ctx context.Context, text string) (*ExtractResult, error) {
	var out ExtractResult
	body := struct {
		Text string `json:"text"`
	}{Text: text}
	if err := a.client.post(ctx, apiPrefix+"/extract", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setFloat(q url.Values, key string, v *float64) {
	if v != nil {
		q.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
	}
}
