// Package ingestion isolates the Methods and statistics narrative of an
// article from JATS XML, Markdown, PDF or plain page-layout text.
package ingestion

import (
	"strings"
)

// SectionKind classifies a captured section.
type SectionKind string

const (
	SectionMethods    SectionKind = "methods"
	SectionStatistics SectionKind = "statistics"
)

// Section is one captured block of narrative.
type Section struct {
	Kind    SectionKind `json:"kind"`
	Title   string      `json:"title"`
	Content string      `json:"content"`
}

// Document is the ingestion result for one article.
type Document struct {
	Title    string    `json:"title"`
	Source   string    `json:"source"`
	PMCID    string    `json:"pmcid,omitempty"`
	Format   string    `json:"format"`
	Sections []Section `json:"sections"`
	// Isolated is false when no Methods heading was found and the whole
	// text stands in for the Methods section.
	Isolated bool `json:"isolated"`
}

// MethodsSections returns the sections classified as methods.
func (d *Document) MethodsSections() []Section { return d.sectionsOf(SectionMethods) }

// StatsSections returns the statistics and reproducibility sections.
func (d *Document) StatsSections() []Section { return d.sectionsOf(SectionStatistics) }

func (d *Document) sectionsOf(kind SectionKind) []Section {
	var out []Section
	for _, s := range d.Sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// AnalysisText joins the methods sections followed by the statistics
// sections, one newline after each.
func (d *Document) AnalysisText() string {
	var b strings.Builder
	for _, s := range d.MethodsSections() {
		b.WriteString(s.Content)
		b.WriteByte('\n')
	}
	for _, s := range d.StatsSections() {
		b.WriteString(s.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// HasAnalysisText reports whether any captured section has content.
func (d *Document) HasAnalysisText() bool {
	return strings.TrimSpace(d.AnalysisText()) != ""
}

// classifyHeading maps a section heading to a kind.
func classifyHeading(title string) (SectionKind, bool) {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "method"):
		return SectionMethods, true
	case strings.Contains(t, "statistic"), strings.Contains(t, "reproducibility"):
		return SectionStatistics, true
	default:
		return "", false
	}
}
