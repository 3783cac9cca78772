// Package feature_extractor turns free Methods text into an evidence map over
// a fixed taxonomy of statistical-reporting concepts.
package feature_extractor

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ExtractorConfig holds tuneable parameters for extraction.
type ExtractorConfig struct {
	// ContextWindow is the number of characters captured either side of a match.
	ContextWindow int `json:"context_window" yaml:"context_window" mapstructure:"context_window"`
	// MaxExamples caps the examples kept per category.
	MaxExamples int `json:"max_examples" yaml:"max_examples" mapstructure:"max_examples"`
}

// DefaultExtractorConfig returns the standard settings.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		ContextWindow: 30,
		MaxExamples:   audit.MaxExamples,
	}
}

// ExtractorMetrics receives one observation per Extract call.
type ExtractorMetrics interface {
	ObserveExtraction(duration time.Duration, textLength int, presentCategories int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveExtraction(time.Duration, int, int) {}

// Option customises an Extractor.
type Option func(*Extractor)

// WithConfig overrides the default configuration. Non-positive values keep
// their defaults.
func WithConfig(cfg ExtractorConfig) Option {
	return func(e *Extractor) {
		if cfg.ContextWindow > 0 {
			e.cfg.ContextWindow = cfg.ContextWindow
		}
		if cfg.MaxExamples > 0 && cfg.MaxExamples <= audit.MaxExamples {
			e.cfg.MaxExamples = cfg.MaxExamples
		}
	}
}

// WithMetrics attaches an observer for extraction timings.
func WithMetrics(m ExtractorMetrics) Option {
	return func(e *Extractor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor scans text against a Taxonomy. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	tax     *Taxonomy
	cfg     ExtractorConfig
	metrics ExtractorMetrics
}

// NewExtractor builds an Extractor over tax. A nil taxonomy selects the
// built-in one.
func NewExtractor(tax *Taxonomy, opts ...Option) *Extractor {
	if tax == nil {
		tax = MustDefaultTaxonomy()
	}
	e := &Extractor{
		tax:     tax,
		cfg:     DefaultExtractorConfig(),
		metrics: noopMetrics{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Taxonomy returns the taxonomy the extractor scans with.
func (e *Extractor) Taxonomy() *Taxonomy { return e.tax }

// Extract produces one FeatureRecord per taxonomy category. It never fails;
// empty input yields a map where no category is present. Matching runs on
// the normalised text (see normaliseText), so MatchedText and Context quote
// that form: whitespace runs, newlines included, appear as a single space.
func (e *Extractor) Extract(text string) audit.FeatureMap {
	start := time.Now()
	text = normaliseText(text)

	out := make(audit.FeatureMap, e.tax.Len())
	present := 0
	for _, cat := range e.tax.order {
		rec := e.extractCategory(text, e.tax.rules[cat])
		if rec.Present {
			present++
		}
		out[cat] = rec
	}

	e.metrics.ObserveExtraction(time.Since(start), len(text), present)
	return out
}

func (e *Extractor) extractCategory(text string, rules []compiledRule) audit.FeatureRecord {
	rec := audit.EmptyRecord()
	if text == "" {
		return rec
	}

	seen := make(map[string]struct{})
	for _, r := range rules {
		for _, span := range r.findAll(text) {
			matched := text[span[0]:span[1]]
			rec.Count++
			if len(rec.Examples) < e.cfg.MaxExamples {
				rec.Examples = append(rec.Examples, audit.MatchEvidence{
					MatchedText: matched,
					Context:     extractContext(text, span[0], span[1], e.cfg.ContextWindow),
				})
			}
			key := normaliseMatch(matched)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				rec.UniqueMatches = append(rec.UniqueMatches, key)
			}
		}
	}
	sort.Strings(rec.UniqueMatches)
	rec.Present = rec.Count > 0
	return rec
}

// ---------------------------------------------------------------------------
// Text utilities
// ---------------------------------------------------------------------------

// normaliseText applies NFKC (folding ligatures and superscripts such as
// "I²" to "I2") and collapses every whitespace run to one space.
func normaliseText(text string) string {
	text = norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
		} else {
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func normaliseMatch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// extractContext returns up to window runes either side of text[start:end],
// trimmed and with line breaks replaced by spaces.
func extractContext(text string, start, end, window int) string {
	ctxStart := start
	for i := 0; i < window && ctxStart > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:ctxStart])
		ctxStart -= size
	}
	ctxEnd := end
	for i := 0; i < window && ctxEnd < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[ctxEnd:])
		ctxEnd += size
	}
	ctx := strings.NewReplacer("\r", " ", "\n", " ").Replace(text[ctxStart:ctxEnd])
	return strings.TrimSpace(ctx)
}
