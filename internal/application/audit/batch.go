package audit

import (
	"context"
	"math"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/ingestion"
	"github.com/turtacn/RigorAudit/pkg/errors"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

// DefaultBatchWorkers is used when Run is given a non-positive worker count.
const DefaultBatchWorkers = 4

// RequestFromDocument builds the request for an ingested document. The file
// name stands in for a missing title.
func RequestFromDocument(doc *ingestion.Document, enhance bool) *Request {
	title := doc.Title
	if title == "" {
		title = filepath.Base(doc.Source)
	}
	return &Request{
		Title:   title,
		Text:    doc.AnalysisText(),
		Source:  doc.Source,
		Enhance: enhance,
	}
}

// BatchItem is the outcome for one input of a batch. Exactly one of Result
// and Err is set.
type BatchItem struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Result  *Result `json:"result,omitempty"`
	Err     error   `json:"-"`
	Failure string  `json:"error,omitempty"`
}

// BatchRunner audits many requests concurrently.
type BatchRunner struct {
	svc    Service
	logger logging.Logger
}

func NewBatchRunner(svc Service, logger logging.Logger) *BatchRunner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BatchRunner{svc: svc, logger: logger.Named("batch")}
}

// Run audits reqs with at most workers in flight. Items come back in input
// order. A failing item does not stop the batch; only cancellation of ctx
// makes Run return an error.
func (b *BatchRunner) Run(ctx context.Context, reqs []*Request, workers int) ([]*BatchItem, error) {
	if len(reqs) == 0 {
		return nil, errors.New(errors.ErrCodeAuditBatchEmpty, "batch has no documents")
	}
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	items := make([]*BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, req := range reqs {
		i, req := i, req
		item := &BatchItem{Index: i}
		if req != nil {
			item.Name = req.Source
			if item.Name == "" {
				item.Name = req.Title
			}
		}
		items[i] = item

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				item.Err, item.Failure = err, err.Error()
				return err
			}
			res, err := b.svc.Audit(gctx, req)
			if err != nil {
				item.Err, item.Failure = err, err.Error()
				b.logger.Warn("Batch item failed", logging.Int("index", i), logging.String("name", item.Name), logging.Err(err))
				return nil
			}
			item.Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	if err := ctx.Err(); err != nil {
		return items, err
	}
	return items, nil
}

// CategoryPrevalence is the share of documents where a category is present.
type CategoryPrevalence struct {
	Category  string  `json:"category"`
	Documents int     `json:"documents"`
	Percent   float64 `json:"percent"`
}

// GapFrequency counts how many documents raised a gap.
type GapFrequency struct {
	Message   string `json:"message"`
	Documents int    `json:"documents"`
}

// BatchSummary aggregates a batch of audits.
type BatchSummary struct {
	Documents  int                  `json:"documents"`
	Failed     int                  `json:"failed"`
	MeanScore  float64              `json:"mean_score"`
	Ratings    map[types.Rating]int `json:"ratings"`
	Prevalence []CategoryPrevalence `json:"category_prevalence"`
	TopGaps    []GapFrequency       `json:"top_gaps"`
}

// DefaultTopGaps bounds BatchSummary.TopGaps.
const DefaultTopGaps = 10

// Summarize aggregates the successful items. Prevalence is sorted by
// descending percentage, then name; TopGaps by descending count, then message.
func Summarize(items []*BatchItem) BatchSummary {
	sum := BatchSummary{
		Ratings:    map[types.Rating]int{types.RatingHigh: 0, types.RatingMedium: 0, types.RatingLow: 0},
		Prevalence: []CategoryPrevalence{},
		TopGaps:    []GapFrequency{},
	}
	present := map[string]int{}
	categories := map[string]struct{}{}
	gaps := map[string]int{}
	var total float64

	for _, it := range items {
		if it == nil || it.Result == nil {
			sum.Failed++
			continue
		}
		rec := it.Result.Record
		sum.Documents++
		total += rec.Report.OverallScore
		sum.Ratings[rec.Report.RigorRating]++
		for name, r := range rec.Features {
			categories[name] = struct{}{}
			if r.Count > 0 {
				present[name]++
			}
		}
		seen := map[string]bool{}
		for _, g := range rec.Report.CriticalGaps {
			if !seen[g.Message] {
				seen[g.Message] = true
				gaps[g.Message]++
			}
		}
	}
	if sum.Documents == 0 {
		return sum
	}

	sum.MeanScore = roundTo(total/float64(sum.Documents), 2)
	for name := range categories {
		n := present[name]
		sum.Prevalence = append(sum.Prevalence, CategoryPrevalence{
			Category:  name,
			Documents: n,
			Percent:   roundTo(100*float64(n)/float64(sum.Documents), 1),
		})
	}
	sort.Slice(sum.Prevalence, func(i, j int) bool {
		a, b := sum.Prevalence[i], sum.Prevalence[j]
		if a.Documents != b.Documents {
			return a.Documents > b.Documents
		}
		return a.Category < b.Category
	})

	for msg, n := range gaps {
		sum.TopGaps = append(sum.TopGaps, GapFrequency{Message: msg, Documents: n})
	}
	sort.Slice(sum.TopGaps, func(i, j int) bool {
		a, b := sum.TopGaps[i], sum.TopGaps[j]
		if a.Documents != b.Documents {
			return a.Documents > b.Documents
		}
		return a.Message < b.Message
	})
	if len(sum.TopGaps) > DefaultTopGaps {
		sum.TopGaps = sum.TopGaps[:DefaultTopGaps]
	}
	return sum
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
