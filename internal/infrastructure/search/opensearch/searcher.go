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

const (
	DefaultTopN     = 10
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// SearchQuery filters indexed audits. Zero values disable a filter.
type SearchQuery struct {
	Text     string       // full-text match on title
	Rating   audit.Rating // exact rating
	Category string       // present category
	Gap      string       // exact gap message
	MinScore *float64
	MaxScore *float64
	Limit    int
	Offset   int
}

// SearchResult is one page of summaries.
type SearchResult struct {
	Total int64           `json:"total"`
	Items []audit.Summary `json:"items"`
}

// Searcher queries the audit summary index.
type Searcher struct {
	transport opensearchapi.Transport
	index     string
	logger    logging.Logger
}

// NewSearcher creates a Searcher over index.
func NewSearcher(client *Client, index string, logger logging.Logger) *Searcher {
	return newSearcher(client.Transport(), index, logger)
}

func newSearcher(t opensearchapi.Transport, index string, logger logging.Logger) *Searcher {
	if index == "" {
		index = "rigor-audits"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Searcher{transport: t, index: index, logger: logger.Named("searcher")}
}

// Search returns summaries matching q, newest first unless Text ranks them.
func (s *Searcher) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	body := map[string]interface{}{
		"query":            buildQuery(q),
		"from":             offset,
		"size":             limit,
		"track_total_hits": true,
	}
	if strings.TrimSpace(q.Text) == "" {
		body["sort"] = []interface{}{map[string]interface{}{"created_at": map[string]string{"order": "desc"}}}
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source audit.Summary `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := s.search(ctx, body, &raw); err != nil {
		return nil, err
	}

	out := &SearchResult{Total: raw.Hits.Total.Value, Items: make([]audit.Summary, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Items = append(out.Items, h.Source)
	}
	return out, nil
}

func buildQuery(q SearchQuery) map[string]interface{} {
	var must []interface{}
	var filter []interface{}

	if t := strings.TrimSpace(q.Text); t != "" {
		must = append(must, map[string]interface{}{"match": map[string]interface{}{"title": t}})
	}
	if q.Rating != "" {
		filter = append(filter, term("rating", string(q.Rating)))
	}
	if q.Category != "" {
		filter = append(filter, term("present_categories", q.Category))
	}
	if q.Gap != "" {
		filter = append(filter, term("gaps", q.Gap))
	}
	if q.MinScore != nil || q.MaxScore != nil {
		r := map[string]interface{}{}
		if q.MinScore != nil {
			r["gte"] = *q.MinScore
		}
		if q.MaxScore != nil {
			r["lte"] = *q.MaxScore
		}
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"score": r}})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	b := map[string]interface{}{}
	if len(must) > 0 {
		b["must"] = must
	}
	if len(filter) > 0 {
		b["filter"] = filter
	}
	return map[string]interface{}{"bool": b}
}

func term(field, value string) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

// Dashboard aggregates every indexed audit: total, mean score, rating
// distribution and the topN most frequent gaps and present categories.
func (s *Searcher) Dashboard(ctx context.Context, topN int) (*audit.DashboardStats, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	body := map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"avg_score":      map[string]interface{}{"avg": map[string]string{"field": "score"}},
			"ratings":        termsAgg("rating", 3),
			"top_gaps":       termsAgg("gaps", topN),
			"top_categories": termsAgg("present_categories", topN),
		},
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			AvgScore struct {
				Value *float64 `json:"value"`
			} `json:"avg_score"`
			Ratings       bucketAgg `json:"ratings"`
			TopGaps       bucketAgg `json:"top_gaps"`
			TopCategories bucketAgg `json:"top_categories"`
		} `json:"aggregations"`
	}
	if err := s.search(ctx, body, &raw); err != nil {
		return nil, err
	}

	stats := &audit.DashboardStats{
		TotalAudits:   raw.Hits.Total.Value,
		Ratings:       raw.Aggregations.Ratings.counts(),
		TopGaps:       raw.Aggregations.TopGaps.counts(),
		TopCategories: raw.Aggregations.TopCategories.counts(),
	}
	if v := raw.Aggregations.AvgScore.Value; v != nil {
		stats.AverageScore = *v
	}
	return stats, nil
}

func termsAgg(field string, size int) map[string]interface{} {
	return map[string]interface{}{"terms": map[string]interface{}{"field": field, "size": size}}
}

type bucketAgg struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int64  `json:"doc_count"`
	} `json:"buckets"`
}

func (b bucketAgg) counts() []audit.CountBucket {
	out := make([]audit.CountBucket, 0, len(b.Buckets))
	for _, bk := range b.Buckets {
		out = append(out, audit.CountBucket{Key: bk.Key, Count: bk.DocCount})
	}
	return out
}

func (s *Searcher) search(ctx context.Context, body interface{}, dst interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search body")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(data),
	}
	resp, err := req.Do(ctx, s.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndex, "search request failed")
	}
	defer drain(resp)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndex, "failed to read search response")
	}
	if resp.IsError() {
		return errorFromResponse(resp.StatusCode, payload, "search failed")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}
	return nil
}
