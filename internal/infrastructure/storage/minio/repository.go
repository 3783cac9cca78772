package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

const (
	documentsPrefix = "documents/"
	reportsPrefix   = "reports/"

	// DefaultMaxObjectBytes bounds GetDocument reads.
	DefaultMaxObjectBytes = 32 << 20
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeObjectNotFound, "object not found")
	ErrObjectTooLarge = errors.New(errors.ErrCodeAuditTooLarge, "object exceeds size limit")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

// Archive stores raw manuscripts and audit reports.
type Archive struct {
	client   *Client
	logger   logging.Logger
	maxBytes int64
}

// NewArchive builds an Archive on client.
func NewArchive(client *Client, log logging.Logger) *Archive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Archive{client: client, logger: log.Named("archive"), maxBytes: DefaultMaxObjectBytes}
}

// DocumentKey returns the key a manuscript uploaded for auditID is stored
// under. Only the base name of filename is kept.
func DocumentKey(auditID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return documentsPrefix + auditID + "/" + name
}

// ReportKey returns the key of the JSON report for auditID.
func ReportKey(auditID string) string {
	return reportsPrefix + auditID + ".json"
}

// PutDocument stores raw manuscript bytes under key.
func (a *Archive) PutDocument(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	if key == "" || len(data) == 0 {
		return nil, ErrInvalidRequest
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return a.put(ctx, key, data, contentType, nil)
}

// GetDocument reads the object stored under key.
func (a *Archive) GetDocument(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidRequest
	}
	if a.client.isClosed() {
		return nil, ErrClientClosed
	}

	obj, err := a.client.api.GetObject(ctx, a.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, a.maxBytes+1))
	if err != nil {
		return nil, mapError(err, key)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, ErrObjectTooLarge.WithDetail(key)
	}
	return data, nil
}

// PutReport archives the full audit record as JSON.
func (a *Archive) PutReport(ctx context.Context, rec *audit.Record) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidRequest
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal audit record")
	}
	_, err = a.put(ctx, ReportKey(rec.ID), data, "application/json", map[string]string{
		"rating": string(rec.Report.RigorRating),
	})
	return err
}

// GetReport loads an archived audit record.
func (a *Archive) GetReport(ctx context.Context, auditID string) (*audit.Record, error) {
	data, err := a.GetDocument(ctx, ReportKey(auditID))
	if err != nil {
		return nil, err
	}
	var rec audit.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode archived report")
	}
	return &rec, nil
}

// Exists reports whether key is stored.
func (a *Archive) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.api.StatObject(ctx, a.client.Bucket(), key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, mapError(err, key)
}

// Delete removes key. Deleting a missing key is not an error.
func (a *Archive) Delete(ctx context.Context, key string) error {
	if err := a.client.api.RemoveObject(ctx, a.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return mapError(err, key)
	}
	return nil
}

func (a *Archive) put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) (*UploadResult, error) {
	if a.client.isClosed() {
		return nil, ErrClientClosed
	}
	info, err := a.client.api.PutObject(ctx, a.client.Bucket(), key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: meta})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStorage, "upload failed").WithDetail(key)
	}
	a.logger.Debug("Object stored", logging.String("key", key), logging.Int64("size", info.Size))
	return &UploadResult{
		Bucket:     a.client.Bucket(),
		ObjectKey:  key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now().UTC(),
	}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func mapError(err error, key string) error {
	if isNotFound(err) {
		return ErrObjectNotFound.WithDetail(key)
	}
	return errors.Wrap(err, errors.ErrCodeObjectStorage, "object storage request failed").WithDetail(key)
}
