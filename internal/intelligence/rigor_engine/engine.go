// Package rigor_engine turns a FeatureMap into a deterministic rigor report:
// study-context classification, an ordered rule chain and a uniform scoring
// policy.
package rigor_engine

import (
	"math"

	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// Scoring policy.
const (
	MaxScore        = 10.0
	MinScore        = 1.0
	GapPenalty      = 1.5
	HighThreshold   = 8.0
	MediumThreshold = 5.0
)

// Score maps a gap count to the 1 to 10 scale, rounded to one decimal.
func Score(gaps int) float64 {
	s := math.Max(MinScore, MaxScore-GapPenalty*float64(gaps))
	return math.Round(s*10) / 10
}

// RatingFor classifies a score.
func RatingFor(score float64) audit.Rating {
	switch {
	case score >= HighThreshold:
		return audit.RatingHigh
	case score >= MediumThreshold:
		return audit.RatingMedium
	default:
		return audit.RatingLow
	}
}

// Assessment pairs a report with the context that gated it.
type Assessment struct {
	Context StudyContext          `json:"context"`
	Report  audit.FeedbackReport `json:"report"`
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithRules replaces the default rule chain.
func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) {
		if len(rules) > 0 {
			e.rules = rules
		}
	}
}

// Engine runs the rule chain. It is immutable after construction and safe
// for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine builds an Engine with DefaultRules unless overridden.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{rules: DefaultRules()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RuleNames lists the active rules in evaluation order.
func (e *Engine) RuleNames() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate produces the deterministic report for features and title.
func (e *Engine) Evaluate(features audit.FeatureMap, title string) audit.FeedbackReport {
	return e.Assess(features, title).Report
}

// Assess classifies the study, runs every rule and scores the result. A
// missing or partial FeatureMap is read as absent evidence.
func (e *Engine) Assess(features audit.FeatureMap, title string) Assessment {
	if features == nil {
		features = audit.FeatureMap{}
	}
	sc := ClassifyContext(features, title)

	var c collector
	for _, s := range sc.strengths() {
		c.addStrength(s)
	}
	for _, r := range e.rules {
		out := r.Apply(features, sc)
		for _, s := range out.Strengths {
			c.addStrength(s)
		}
		if sc.IsNonResearch {
			continue
		}
		for _, g := range out.Gaps {
			c.addGap(g)
		}
		c.recs = append(c.recs, out.Recommendations...)
	}

	score := Score(len(c.gaps))
	return Assessment{
		Context: sc,
		Report: audit.FeedbackReport{
			OverallScore:              score,
			RigorRating:               RatingFor(score),
			CriticalGaps:              nonNilFindings(c.gaps),
			Strengths:                 nonNilFindings(c.strengths),
			ActionableRecommendations: nonNilRecs(c.recs),
			Deterministic:             true,
		},
	}
}

// collector accumulates findings, dropping repeats by message.
type collector struct {
	gaps      []audit.Finding
	strengths []audit.Finding
	recs      []audit.Recommendation
}

func (c *collector) addGap(f audit.Finding)      { c.gaps = appendUnique(c.gaps, f) }
func (c *collector) addStrength(f audit.Finding) { c.strengths = appendUnique(c.strengths, f) }

func appendUnique(list []audit.Finding, f audit.Finding) []audit.Finding {
	for _, x := range list {
		if x.Message == f.Message {
			return list
		}
	}
	return append(list, f)
}

func nonNilFindings(f []audit.Finding) []audit.Finding {
	if f == nil {
		return []audit.Finding{}
	}
	return f
}

func nonNilRecs(r []audit.Recommendation) []audit.Recommendation {
	if r == nil {
		return []audit.Recommendation{}
	}
	return r
}
