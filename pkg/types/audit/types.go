// Package audit holds the data model shared by the extractor, the rule engine,
// the service layer and API clients: evidence maps, findings and reports.
package audit

import (
	"sort"
	"strings"
	"time"
)

// MatchEvidence is one pattern hit with its surrounding text.
type MatchEvidence struct {
	MatchedText string `json:"matched_text"`
	// Context is up to 30 characters either side of the match, newline-free.
	Context string `json:"context"`
}

// FeatureRecord is the evidence collected for one taxonomy category.
// Present is true exactly when Count > 0. Examples holds at most
// MaxExamples leading matches.
type FeatureRecord struct {
	Present       bool            `json:"present"`
	Count         int             `json:"count"`
	UniqueMatches []string        `json:"unique_matches"`
	Examples      []MatchEvidence `json:"examples"`
}

// MaxExamples caps FeatureRecord.Examples.
const MaxExamples = 3

// EmptyRecord returns the record used for an absent category.
func EmptyRecord() FeatureRecord {
	return FeatureRecord{UniqueMatches: []string{}, Examples: []MatchEvidence{}}
}

// Joined returns the unique matches joined by single spaces.
func (r FeatureRecord) Joined() string {
	return strings.Join(r.UniqueMatches, " ")
}

// ContainsAny reports whether any unique match contains one of terms.
// Unique matches are already lowercase; terms are expected lowercase.
func (r FeatureRecord) ContainsAny(terms ...string) bool {
	joined := r.Joined()
	for _, t := range terms {
		if strings.Contains(joined, t) {
			return true
		}
	}
	return false
}

// FeatureMap maps category name to its evidence record.
type FeatureMap map[string]FeatureRecord

// Get returns the record for category, or an empty record when absent.
func (m FeatureMap) Get(category string) FeatureRecord {
	if r, ok := m[category]; ok {
		if r.UniqueMatches == nil {
			r.UniqueMatches = []string{}
		}
		if r.Examples == nil {
			r.Examples = []MatchEvidence{}
		}
		return r
	}
	return EmptyRecord()
}

// Has reports whether category is present (Count > 0).
func (m FeatureMap) Has(category string) bool {
	return m.Get(category).Count > 0
}

// Categories returns every category name in sorted order.
func (m FeatureMap) Categories() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PresentCategories returns the sorted names of categories with Count > 0.
func (m FeatureMap) PresentCategories() []string {
	out := make([]string, 0, len(m))
	for k, r := range m {
		if r.Count > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Report
// ─────────────────────────────────────────────────────────────────────────────

// Finding is a gap or a strength with its supporting evidence.
type Finding struct {
	Message  string `json:"message"`
	Evidence string `json:"evidence"`
}

// Recommendation is an actionable fix tied to an audited item.
type Recommendation struct {
	Item           string `json:"item"`
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
	SourceExcerpt  string `json:"source_excerpt,omitempty"`
}

// Rating is the coarse rigor class derived from the score.
type Rating string

const (
	RatingHigh   Rating = "High"
	RatingMedium Rating = "Medium"
	RatingLow    Rating = "Low"
)

// FeedbackReport is the deterministic audit output.
type FeedbackReport struct {
	OverallScore              float64          `json:"overall_score"`
	RigorRating               Rating           `json:"rigor_rating"`
	CriticalGaps              []Finding        `json:"critical_gaps"`
	Strengths                 []Finding        `json:"strengths"`
	ActionableRecommendations []Recommendation `json:"actionable_recommendations"`
	Deterministic             bool             `json:"deterministic"`
}

// GapMessages returns the messages of every critical gap in order.
func (r FeedbackReport) GapMessages() []string {
	out := make([]string, len(r.CriticalGaps))
	for i, g := range r.CriticalGaps {
		out[i] = g.Message
	}
	return out
}

// StrengthMessages returns the messages of every strength in order.
func (r FeedbackReport) StrengthMessages() []string {
	out := make([]string, len(r.Strengths))
	for i, s := range r.Strengths {
		out[i] = s.Message
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Stored audits
// ─────────────────────────────────────────────────────────────────────────────

// Narrative is an optional language-model review of an audit.
type Narrative struct {
	Summary         string   `json:"summary"`
	KeyIssues       []string `json:"key_issues"`
	Recommendations []string `json:"recommendations"`
	RigorCommentary string   `json:"rigor_commentary"`
	Model           string   `json:"model,omitempty"`
}

// Record is one completed audit as persisted and served by the API.
type Record struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Source      string         `json:"source,omitempty"`
	TextHash    string         `json:"text_hash"`
	Features    FeatureMap     `json:"features"`
	Report      FeedbackReport `json:"report"`
	Enhancement *Narrative     `json:"enhancement,omitempty"`
	Notes       []string       `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Summary is the index-friendly projection of a Record.
type Summary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Source            string    `json:"source,omitempty"`
	Score             float64   `json:"score"`
	Rating            Rating    `json:"rating"`
	GapCount          int       `json:"gap_count"`
	Gaps              []string  `json:"gaps"`
	PresentCategories []string  `json:"present_categories"`
	Enhanced          bool      `json:"enhanced"`
	CreatedAt         time.Time `json:"created_at"`
}

// Summarize projects r for listing and indexing.
func (r *Record) Summarize() Summary {
	return Summary{
		ID:                r.ID,
		Title:             r.Title,
		Source:            r.Source,
		Score:             r.Report.OverallScore,
		Rating:            r.Report.RigorRating,
		GapCount:          len(r.Report.CriticalGaps),
		Gaps:              r.Report.GapMessages(),
		PresentCategories: r.Features.PresentCategories(),
		Enhanced:          r.Enhancement != nil,
		CreatedAt:         r.CreatedAt,
	}
}

// CountBucket is a term with its document count.
type CountBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// DashboardStats aggregates every indexed audit.
type DashboardStats struct {
	TotalAudits   int64         `json:"total_audits"`
	AverageScore  float64       `json:"average_score"`
	Ratings       []CountBucket `json:"ratings"`
	TopGaps       []CountBucket `json:"top_gaps"`
	TopCategories []CountBucket `json:"top_categories"`
}
