package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

var ErrDocumentIndexFailed = errors.New(errors.ErrCodeSearchIndex, "document indexing failed")

// AuditIndexMapping is the mapping of the audit summary index. Field names
// follow the JSON tags of audit.Summary.
const AuditIndexMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "id":                 {"type": "keyword"},
      "title":              {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 512}}},
      "source":             {"type": "keyword"},
      "score":              {"type": "float"},
      "rating":             {"type": "keyword"},
      "gap_count":          {"type": "integer"},
      "gaps":               {"type": "keyword"},
      "present_categories": {"type": "keyword"},
      "enhanced":           {"type": "boolean"},
      "created_at":         {"type": "date"}
    }
  }
}`

// IndexerConfig configures the Indexer.
type IndexerConfig struct {
	Index string
	// RefreshPolicy is passed as ?refresh= on writes: "", "true" or "wait_for".
	RefreshPolicy string
}

// Indexer writes audit summaries to OpenSearch.
type Indexer struct {
	transport opensearchapi.Transport
	config    IndexerConfig
	logger    logging.Logger
}

// NewIndexer creates an Indexer on client.
func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	return newIndexer(client.Transport(), cfg, logger)
}

func newIndexer(t opensearchapi.Transport, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.Index == "" {
		cfg.Index = "rigor-audits"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{transport: t, config: cfg, logger: logger.Named("indexer")}
}

// Index returns the index name.
func (i *Indexer) Index() string { return i.config.Index }

// EnsureIndex creates the index with AuditIndexMapping unless it exists.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.IndexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	req := opensearchapi.IndicesCreateRequest{
		Index: i.config.Index,
		Body:  strings.NewReader(AuditIndexMapping),
	}
	resp, err := req.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndex, "create index request failed")
	}
	defer drain(resp)

	if resp.IsError() {
		body, _ := io.ReadAll(resp.Body)
		// A concurrent creator won the race.
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return errorFromResponse(resp.StatusCode, body, "create index failed")
	}

	i.logger.Info("Index created", logging.String("index", i.config.Index))
	return nil
}

// IndexExists checks whether the index exists.
func (i *Indexer) IndexExists(ctx context.Context) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{i.config.Index}}
	resp, err := req.Do(ctx, i.transport)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSearchIndex, "index existence request failed")
	}
	defer drain(resp)

	switch resp.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	}
	return false, errors.Newf(errors.ErrCodeSearchIndex, "index existence check returned %d", resp.StatusCode)
}

// IndexSummary upserts one audit summary keyed by its ID.
func (i *Indexer) IndexSummary(ctx context.Context, s audit.Summary) error {
	if s.ID == "" {
		return errors.New(errors.ErrCodeValidation, "summary id required")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal summary")
	}

	req := opensearchapi.IndexRequest{
		Index:      i.config.Index,
		DocumentID: s.ID,
		Body:       bytes.NewReader(body),
		Refresh:    i.config.RefreshPolicy,
	}
	resp, err := req.Do(ctx, i.transport)
	if err != nil {
		return ErrDocumentIndexFailed.WithCause(err)
	}
	defer drain(resp)

	if resp.IsError() {
		data, _ := io.ReadAll(resp.Body)
		return errorFromResponse(resp.StatusCode, data, "index summary failed")
	}
	i.logger.Debug("Summary indexed", logging.String("id", s.ID))
	return nil
}

// DeleteSummary removes the summary for id. A missing document is not an error.
func (i *Indexer) DeleteSummary(ctx context.Context, id string) error {
	req := opensearchapi.DeleteRequest{
		Index:      i.config.Index,
		DocumentID: id,
		Refresh:    i.config.RefreshPolicy,
	}
	resp, err := req.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndex, "delete request failed")
	}
	defer drain(resp)

	if resp.StatusCode == 404 {
		return nil
	}
	if resp.IsError() {
		data, _ := io.ReadAll(resp.Body)
		return errorFromResponse(resp.StatusCode, data, "delete summary failed")
	}
	return nil
}

// errorFromResponse extracts error.reason from an OpenSearch error body.
func errorFromResponse(status int, body []byte, msg string) error {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	code := errors.ErrCodeSearchIndex
	if status == 404 {
		code = errors.ErrCodeNotFound
	}
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error.Reason != "" {
		detail = e.Error.Type + ": " + e.Error.Reason
	}
	return errors.Newf(code, "%s (status %d)", msg, status).WithDetail(detail)
}
