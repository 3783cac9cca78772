package feature_extractor

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

type recordingMetrics struct {
	mu      sync.Mutex
	calls   int
	length  int
	present int
}

func (m *recordingMetrics) ObserveExtraction(_ time.Duration, textLength, present int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.length = textLength
	m.present = present
}

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	return NewExtractor(MustDefaultTaxonomy(), opts...)
}

func TestExtract_EmptyInput(t *testing.T) {
	ex := newTestExtractor(t)
	for _, text := range []string{"", "   ", "\n\t \r\n"} {
		fm := ex.Extract(text)
		assert.Len(t, fm, ex.Taxonomy().Len())
		for cat, rec := range fm {
			assert.False(t, rec.Present, cat)
			assert.Zero(t, rec.Count, cat)
			assert.NotNil(t, rec.UniqueMatches, cat)
			assert.NotNil(t, rec.Examples, cat)
		}
	}
}

func TestExtract_Randomization(t *testing.T) {
	ex := newTestExtractor(t)
	fm := ex.Extract("Patients were randomly assigned to treatment or control groups.")

	rec := fm[CatRandomization]
	assert.True(t, rec.Present)
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, []string{"randomly assigned"}, rec.UniqueMatches)
	require.Len(t, rec.Examples, 1)
	assert.Equal(t, "randomly assigned", rec.Examples[0].MatchedText)
	assert.Equal(t, "Patients were randomly assigned to treatment or control group", rec.Examples[0].Context)

	assert.True(t, fm[CatParticipants].Present)
}

func TestExtract_UniqueMatchesAndExampleCap(t *testing.T) {
	ex := newTestExtractor(t)
	fm := ex.Extract("Bonferroni was used. We applied bonferroni again.\nBONFERRONI thrice, and Bonferroni a fourth time.")

	rec := fm[CatMultiplicityCorrection]
	assert.Equal(t, 4, rec.Count)
	assert.Equal(t, []string{"bonferroni"}, rec.UniqueMatches)
	assert.Len(t, rec.Examples, audit.MaxExamples)
	for _, e := range rec.Examples {
		assert.NotContains(t, e.Context, "\n")
	}
}

func TestExtract_ExamplesFollowRuleThenPosition(t *testing.T) {
	ex := newTestExtractor(t)
	fm := ex.Extract("We found p = 0.03 with a p-value reported and p < 0.01 later.")

	rec := fm[CatPValues]
	assert.Equal(t, 3, rec.Count)
	require.Len(t, rec.Examples, 3)
	assert.Equal(t, "p = 0.03", rec.Examples[0].MatchedText)
	assert.Equal(t, "p < 0.01", rec.Examples[1].MatchedText)
	assert.Equal(t, "p-value", rec.Examples[2].MatchedText)
	assert.Equal(t, []string{"p < 0.01", "p = 0.03", "p-value"}, rec.UniqueMatches)
}

func TestExtract_SpanMaySatisfySeveralCategories(t *testing.T) {
	ex := newTestExtractor(t)
	fm := ex.Extract("Pairwise comparisons used Tukey HSD.")

	assert.Equal(t, []string{"tukey"}, fm[CatMultiplicityCorrection].UniqueMatches)
	assert.Equal(t, []string{"tukey"}, fm[CatPostHoc].UniqueMatches)
}

func TestExtract_UnicodeNormalisation(t *testing.T) {
	ex := newTestExtractor(t)

	fm := ex.Extract("The signiﬁcance level was set in advance.")
	assert.True(t, fm[CatPValues].Present)
	assert.Equal(t, []string{"significance level"}, fm[CatPValues].UniqueMatches)

	fm = ex.Extract("Heterogeneity was quantified with I² = 45%.")
	assert.Contains(t, fm[CatSystematicReviewMetrics].UniqueMatches, "i2")

	fm = ex.Extract("Fisher’s exact test was applied.")
	assert.True(t, fm[CatComparativeStats].Present)
}

func TestExtract_StrictAcronymsAvoidWords(t *testing.T) {
	ex := newTestExtractor(t)

	fm := ex.Extract("All participants agreed to take part.")
	assert.False(t, fm[CatAdvancedModeling].Present)

	fm = ex.Extract("Models were fitted with GEE and an exchangeable structure.")
	assert.Equal(t, []string{"gee"}, fm[CatAdvancedModeling].UniqueMatches)

	fm = ex.Extract("The SASHIMI plot and CONSORTIUM data were reviewed.")
	assert.False(t, fm[CatSoftware].Present)
	assert.False(t, fm[CatReportingGuidelines].Present)
}

func TestExtract_WordBoundedTerms(t *testing.T) {
	ex := newTestExtractor(t)

	fm := ex.Extract("Karolinska Institutet, Stockholm. Data curated by J. Holmes.")
	assert.False(t, fm[CatMultiplicityCorrection].Present)

	fm = ex.Extract("P-values were adjusted with the Holm-Bonferroni procedure.")
	require.True(t, fm[CatMultiplicityCorrection].Present)
	assert.Contains(t, fm[CatMultiplicityCorrection].UniqueMatches, "holm-bonferroni")

	fm = ex.Extract("Holm correction was applied.")
	assert.True(t, fm[CatMultiplicityCorrection].Present)

	fm = ex.Extract("Records came from outpatients and inpatient wards.")
	assert.False(t, fm[CatParticipants].Present)

	fm = ex.Extract("Each patient gave written consent.")
	assert.True(t, fm[CatParticipants].Present)
}

func TestExtract_ContextWindowIsRuneSafe(t *testing.T) {
	ex := newTestExtractor(t, WithConfig(ExtractorConfig{ContextWindow: 5}))
	fm := ex.Extract("ééééééééé Bonferroni ééééééééé")

	require.Len(t, fm[CatMultiplicityCorrection].Examples, 1)
	assert.Equal(t, "éééé Bonferroni éééé", fm[CatMultiplicityCorrection].Examples[0].Context)
}

func TestExtract_Idempotent(t *testing.T) {
	ex := newTestExtractor(t)
	text := strings.Repeat("Data were analysed with a paired t-test (p = 0.04) in R version 4.2. ", 3)
	assert.Equal(t, ex.Extract(text), ex.Extract(text))
}

func TestExtract_InvariantsHoldForEveryCategory(t *testing.T) {
	ex := newTestExtractor(t)
	text := `A total of 120 patients were randomised in a double-blind trial. Sample size
was based on a power calculation. Continuous outcomes are mean (SD) and were compared with
the t-test or Mann-Whitney test after Shapiro-Wilk testing; categorical data by chi-square.
Kaplan-Meier curves, log-rank tests and Cox proportional hazards models (HR = 0.7, 95% CI
0.5-0.9) were used; Schoenfeld residuals were inspected. Missing values were handled by
multiple imputation. P < 0.05 was significant; Bonferroni correction was applied.`

	fm := ex.Extract(text)
	for cat, rec := range fm {
		assert.Equal(t, rec.Count > 0, rec.Present, cat)
		assert.LessOrEqual(t, len(rec.Examples), audit.MaxExamples, cat)
		assert.LessOrEqual(t, len(rec.Examples), rec.Count, cat)
		seen := map[string]bool{}
		for _, m := range rec.UniqueMatches {
			assert.Equal(t, strings.ToLower(m), m, cat)
			assert.False(t, seen[m], "duplicate %q in %s", m, cat)
			seen[m] = true
		}
	}
	assert.True(t, fm[CatSurvivalAnalysis].Present)
	assert.Contains(t, fm[CatSurvivalAnalysis].UniqueMatches, "hr =")
}

func TestExtract_ConcurrentUse(t *testing.T) {
	ex := newTestExtractor(t)
	text := "Blinded assessors used opaque envelopes; Bonferroni adjustment was applied."
	want := ex.Extract(text)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, ex.Extract(text))
		}()
	}
	wg.Wait()
}

func TestExtract_ReportsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	ex := newTestExtractor(t, WithMetrics(m))
	ex.Extract("Randomised with Bonferroni correction.")

	assert.Equal(t, 1, m.calls)
	assert.Equal(t, len("Randomised with Bonferroni correction."), m.length)
	assert.Equal(t, 2, m.present)
}

func TestNewExtractor_NilTaxonomyUsesDefault(t *testing.T) {
	ex := NewExtractor(nil)
	assert.Equal(t, MustDefaultTaxonomy().Categories(), ex.Taxonomy().Categories())
}
