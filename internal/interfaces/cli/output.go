package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

// auditView renders one audit for the terminal.
type auditView struct {
	*types.Record
	Cached bool `json:"cached"`
}

func (v *auditView) String() string {
	var sb strings.Builder
	r := v.Report

	fmt.Fprintf(&sb, "%s\n", v.Title)
	if v.ID != "" {
		fmt.Fprintf(&sb, "Audit:  %s", v.ID)
		if v.Cached {
			sb.WriteString(" (cached)")
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Score:  %.1f / 10 (%s rigor)\n", r.OverallScore, r.RigorRating)

	writeFindings(&sb, "Critical gaps", r.CriticalGaps)
	writeFindings(&sb, "Strengths", r.Strengths)

	if len(r.ActionableRecommendations) > 0 {
		sb.WriteString("\nRecommendations\n")
		for i, rec := range r.ActionableRecommendations {
			fmt.Fprintf(&sb, "  %d. [%s] %s\n", i+1, rec.Item, rec.Recommendation)
			if rec.Issue != "" {
				fmt.Fprintf(&sb, "     issue: %s\n", rec.Issue)
			}
			if rec.SourceExcerpt != "" {
				fmt.Fprintf(&sb, "     source: %q\n", rec.SourceExcerpt)
			}
		}
	}

	if n := v.Enhancement; n != nil {
		sb.WriteString("\nNarrative review")
		if n.Model != "" {
			fmt.Fprintf(&sb, " (%s)", n.Model)
		}
		sb.WriteString("\n")
		if n.Summary != "" {
			fmt.Fprintf(&sb, "  %s\n", n.Summary)
		}
		for _, issue := range n.KeyIssues {
			fmt.Fprintf(&sb, "  - %s\n", issue)
		}
		if n.RigorCommentary != "" {
			fmt.Fprintf(&sb, "  %s\n", n.RigorCommentary)
		}
	}

	if len(v.Notes) > 0 {
		sb.WriteString("\nNotes\n")
		for _, note := range v.Notes {
			fmt.Fprintf(&sb, "  - %s\n", note)
		}
	}
	return sb.String()
}

func writeFindings(sb *strings.Builder, heading string, fs []types.Finding) {
	if len(fs) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s\n", heading)
	for _, f := range fs {
		fmt.Fprintf(sb, "  - %s\n", f.Message)
		if f.Evidence != "" {
			fmt.Fprintf(sb, "    evidence: %s\n", f.Evidence)
		}
	}
}

func (v *auditView) TableHeaders() []string {
	return []string{"CATEGORY", "PRESENT", "COUNT", "MATCHES"}
}

func (v *auditView) TableRows() [][]string {
	cats := v.Features.Categories()
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		f := v.Features.Get(c)
		present := "no"
		if f.Present {
			present = "yes"
		}
		rows = append(rows, []string{c, present, strconv.Itoa(f.Count), strings.Join(f.UniqueMatches, "; ")})
	}
	return rows
}

// batchView renders a batch run.
type batchView struct {
	Items   []*audit.BatchItem  `json:"items"`
	Skipped []skippedFile       `json:"skipped,omitempty"`
	Summary *audit.BatchSummary `json:"summary,omitempty"`
}

type skippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (v *batchView) String() string {
	var sb strings.Builder
	for _, it := range v.Items {
		if it.Result != nil {
			r := it.Result.Report
			fmt.Fprintf(&sb, "%-40s %5.1f  %-6s  %d gaps\n", it.Name, r.OverallScore, r.RigorRating, len(r.CriticalGaps))
		} else {
			fmt.Fprintf(&sb, "%-40s FAILED  %s\n", it.Name, it.Failure)
		}
	}
	for _, s := range v.Skipped {
		fmt.Fprintf(&sb, "%-40s SKIPPED %s\n", s.Name, s.Reason)
	}

	if s := v.Summary; s != nil {
		fmt.Fprintf(&sb, "\n%d documents audited, %d failed, mean score %.2f\n", s.Documents, s.Failed, s.MeanScore)
		fmt.Fprintf(&sb, "Ratings: High %d, Medium %d, Low %d\n",
			s.Ratings[types.RatingHigh], s.Ratings[types.RatingMedium], s.Ratings[types.RatingLow])
		if len(s.Prevalence) > 0 {
			sb.WriteString("\nCategory prevalence\n")
			for _, p := range s.Prevalence {
				fmt.Fprintf(&sb, "  %-28s %5.1f%% (%d)\n", p.Category, p.Percent, p.Documents)
			}
		}
		if len(s.TopGaps) > 0 {
			sb.WriteString("\nMost frequent gaps\n")
			for _, g := range s.TopGaps {
				fmt.Fprintf(&sb, "  %3d  %s\n", g.Documents, g.Message)
			}
		}
	}
	return sb.String()
}

func (v *batchView) TableHeaders() []string {
	return []string{"#", "DOCUMENT", "SCORE", "RATING", "GAPS", "ERROR"}
}

func (v *batchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Items))
	for _, it := range v.Items {
		row := []string{strconv.Itoa(it.Index + 1), it.Name, "", "", "", it.Failure}
		if it.Result != nil {
			r := it.Result.Report
			row[2] = strconv.FormatFloat(r.OverallScore, 'f', 1, 64)
			row[3] = string(r.RigorRating)
			row[4] = strconv.Itoa(len(r.CriticalGaps))
		}
		rows = append(rows, row)
	}
	return rows
}

// migrationView reports the schema state.
type migrationView struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (v *migrationView) String() string {
	state := "clean"
	if v.Dirty {
		state = "dirty"
	}
	return fmt.Sprintf("Schema version %d (%s)\n", v.Version, state)
}

func (v *migrationView) TableHeaders() []string { return []string{"VERSION", "DIRTY"} }

func (v *migrationView) TableRows() [][]string {
	return [][]string{{strconv.FormatUint(uint64(v.Version), 10), strconv.FormatBool(v.Dirty)}}
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("rigoraudit %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s\n",
		b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}

func (b BuildInfo) TableHeaders() []string {
	return []string{"VERSION", "COMMIT", "BUILT", "GO", "PLATFORM"}
}

func (b BuildInfo) TableRows() [][]string {
	return [][]string{{b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform}}
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
