package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/ingestion"
	"github.com/turtacn/RigorAudit/pkg/errors"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

// DefaultMaxUploadBytes bounds manuscript uploads and JATS bodies.
const DefaultMaxUploadBytes = ingestion.MaxDocumentBytes

// CreateAuditRequest is the body of POST /api/v1/audits.
type CreateAuditRequest struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Source  string `json:"source"`
	Enhance bool   `json:"enhance"`
}

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// ExtractResponse lists the extracted features.
type ExtractResponse struct {
	Features          types.FeatureMap `json:"features"`
	PresentCategories []string         `json:"present_categories"`
}

// AuditHandler serves the audit API.
type AuditHandler struct {
	svc            audit.Service
	logger         logging.Logger
	maxUploadBytes int64
}

// NewAuditHandler creates an AuditHandler over svc.
func NewAuditHandler(svc audit.Service, logger logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuditHandler{svc: svc, logger: logger.Named("audit_handler"), maxUploadBytes: DefaultMaxUploadBytes}
}

// RegisterRoutes mounts the audit endpoints on rg.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	audits := rg.Group("/audits")
	audits.POST("", h.Create)
	audits.POST("/jats", h.CreateFromJATS)
	audits.POST("/upload", h.Upload)
	audits.GET("", h.List)
	audits.GET("/search", h.Search)
	audits.GET("/:id", h.Get)

	rg.GET("/dashboard", h.Dashboard)
	rg.POST("/extract", h.Extract)
}

// Create handles POST /api/v1/audits.
func (h *AuditHandler) Create(c *gin.Context) {
	var body CreateAuditRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, "invalid JSON body", err)
		return
	}
	h.run(c, &audit.Request{
		Title:   body.Title,
		Text:    body.Text,
		Source:  body.Source,
		Enhance: body.Enhance,
	})
}

// CreateFromJATS handles POST /api/v1/audits/jats with a JATS XML body.
// ?filename= names the archived copy; ?enhance=true requests a narrative.
func (h *AuditHandler) CreateFromJATS(c *gin.Context) {
	enhance, err := queryBool(c, "enhance")
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxUploadBytes+1))
	if err != nil {
		badRequest(c, h.logger, "failed to read body", err)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		writeAppError(c, h.logger, errors.New(errors.ErrCodeAuditTooLarge, "document exceeds size limit"))
		return
	}

	name := jatsName(c.Query("filename"))
	req, err := h.ingest(name, data, "application/xml", enhance)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	h.run(c, req)
}

// Upload handles POST /api/v1/audits/upload: a multipart form with a
// "file" part (xml, md, txt or pdf) and optional "title" and "enhance".
func (h *AuditHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, h.logger, "multipart field \"file\" is required", err)
		return
	}
	if fh.Size > h.maxUploadBytes {
		writeAppError(c, h.logger, errors.New(errors.ErrCodeAuditTooLarge, "document exceeds size limit").WithDetail(fh.Filename))
		return
	}
	enhance := false
	if v := c.PostForm("enhance"); v != "" {
		enhance = v == "true" || v == "1"
	}

	data, err := readFormFile(fh)
	if err != nil {
		badRequest(c, h.logger, "failed to read upload", err)
		return
	}

	req, err := h.ingest(path.Base(fh.Filename), data, fh.Header.Get("Content-Type"), enhance)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if t := strings.TrimSpace(c.PostForm("title")); t != "" {
		req.Title = t
	}
	h.run(c, req)
}

func (h *AuditHandler) ingest(name string, data []byte, contentType string, enhance bool) (*audit.Request, error) {
	doc, err := ingestion.LoadReader(name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req := audit.RequestFromDocument(doc, enhance)
	req.Document = &audit.Upload{Filename: name, ContentType: contentType, Data: data}
	return req, nil
}

func (h *AuditHandler) run(c *gin.Context, req *audit.Request) {
	res, err := h.svc.Audit(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Cached {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// Get handles GET /api/v1/audits/:id.
func (h *AuditHandler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// List handles GET /api/v1/audits?limit=&offset=.
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", audit.DefaultPageSize)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	res, err := h.svc.List(c.Request.Context(), &audit.ListInput{Limit: limit, Offset: offset})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search handles GET /api/v1/audits/search with the filters q, rating,
// category, gap, min_score, max_score, limit and offset.
func (h *AuditHandler) Search(c *gin.Context) {
	in := &audit.SearchInput{
		Text:     c.Query("q"),
		Rating:   types.Rating(c.Query("rating")),
		Category: c.Query("category"),
		Gap:      c.Query("gap"),
	}
	var err error
	if in.MinScore, err = queryFloat(c, "min_score"); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if in.MaxScore, err = queryFloat(c, "max_score"); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if in.Limit, err = queryInt(c, "limit", audit.DefaultPageSize); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if in.Offset, err = queryInt(c, "offset", 0); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if in.Rating != "" && !validRating(in.Rating) {
		writeAppError(c, h.logger, errors.New(errors.ErrCodeBadRequest, "rating must be High, Medium or Low").WithDetail(string(in.Rating)))
		return
	}

	res, err := h.svc.Search(c.Request.Context(), in)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Dashboard handles GET /api/v1/dashboard?top=.
func (h *AuditHandler) Dashboard(c *gin.Context) {
	top, err := queryInt(c, "top", 0)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	stats, err := h.svc.Dashboard(c.Request.Context(), top)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Extract handles POST /api/v1/extract. It runs the extractor only.
func (h *AuditHandler) Extract(c *gin.Context) {
	var body ExtractRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, "invalid JSON body", err)
		return
	}
	fm, err := h.svc.Extract(body.Text)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ExtractResponse{Features: fm, PresentCategories: fm.PresentCategories()})
}

func validRating(r types.Rating) bool {
	switch r {
	case types.RatingHigh, types.RatingMedium, types.RatingLow:
		return true
	}
	return false
}

func jatsName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "article.xml"
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".nxml":
		return name
	}
	return name + ".xml"
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
