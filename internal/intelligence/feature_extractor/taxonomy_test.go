package feature_extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RigorAudit/pkg/errors"
)

func TestNewTaxonomy_Validation(t *testing.T) {
	tests := []struct {
		name string
		defs []CategoryDef
		code errors.ErrorCode
	}{
		{
			name: "no categories",
			defs: nil,
			code: errors.ErrCodeEmptyTaxonomy,
		},
		{
			name: "duplicate category",
			defs: []CategoryDef{
				{Name: "a", Rules: []PatternRule{CI(`x`)}},
				{Name: "a", Rules: []PatternRule{CI(`y`)}},
			},
			code: errors.ErrCodeDuplicateCategory,
		},
		{
			name: "unbalanced group",
			defs: []CategoryDef{{Name: "a", Rules: []PatternRule{CI(`(unclosed`)}}},
			code: errors.ErrCodeInvalidPattern,
		},
		{
			name: "lookbehind is rejected at construction",
			defs: []CategoryDef{{Name: "a", Rules: []PatternRule{Strict(`(?<![a-z])DIC`)}}},
			code: errors.ErrCodeInvalidPattern,
		},
		{
			name: "empty rule list",
			defs: []CategoryDef{{Name: "a"}},
			code: errors.ErrCodeInvalidPattern,
		},
		{
			name: "empty name",
			defs: []CategoryDef{{Name: "", Rules: []PatternRule{CI(`x`)}}},
			code: errors.ErrCodeInvalidPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, err := NewTaxonomy(tt.defs)
			require.Error(t, err)
			assert.Nil(t, tax)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestDefaultTaxonomy(t *testing.T) {
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)

	assert.Equal(t, 36, tax.Len())
	for _, cat := range []string{
		CatSampleSize, CatRandomization, CatBlinding, CatAllocationConcealment,
		CatMultiplicityCorrection, CatNormalityChecks, CatPValues, CatConfidenceIntervals,
		CatComparativeStats, CatSurvivalAnalysis, CatRegressionAndModels, CatMissingData,
		CatEffectSize, CatPostHoc, CatDependency, CatClustering, CatSoftware,
		CatReportingGuidelines, CatDomainIndicators, CatDiagnosticMetrics,
		CatSystematicReviewMetrics, CatModelDetails,
	} {
		assert.True(t, tax.Has(cat), cat)
	}
}

func TestTaxonomy_AccessorsReturnCopies(t *testing.T) {
	tax := MustDefaultTaxonomy()

	cats := tax.Categories()
	require.NotEmpty(t, cats)
	assert.Equal(t, CatSampleSize, cats[0])
	cats[0] = "mutated"
	assert.Equal(t, CatSampleSize, tax.Categories()[0])

	rules := tax.Rules(CatSystematicReviewMetrics)
	require.NotEmpty(t, rules)
	for _, r := range rules {
		assert.Equal(t, CatSystematicReviewMetrics, r.Category)
	}
	rules[0].Pattern = "mutated"
	assert.NotEqual(t, "mutated", tax.Rules(CatSystematicReviewMetrics)[0].Pattern)

	assert.Nil(t, tax.Rules("unknown"))
	assert.False(t, tax.Has("unknown"))
}

func TestMatchMode_String(t *testing.T) {
	assert.Equal(t, "case_insensitive", ModeCaseInsensitive.String())
	assert.Equal(t, "strict_token", ModeStrictToken.String())
	assert.Equal(t, "MatchMode(7)", MatchMode(7).String())
}

func TestStrictToken_Boundaries(t *testing.T) {
	tax, err := NewTaxonomy([]CategoryDef{
		{Name: "dic", Rules: []PatternRule{Strict(`DIC`)}},
		{Name: "i2", Rules: []PatternRule{Strict(`I2`)}},
	})
	require.NoError(t, err)
	ex := NewExtractor(tax)

	tests := []struct {
		text  string
		cat   string
		count int
	}{
		{"The modification was successful.", "dic", 0},
		{"We evaluated the model using DIC.", "dic", 1},
		{"the DIC was calculated", "dic", 1},
		{"MEDICATION and DIC", "dic", 1},
		{"DIC-based comparison", "dic", 1},
		{"(DIC)", "dic", 1},
		{"dic lowercase", "dic", 0},
		{"AI2 I2 RI2", "i2", 1},
		{"XI2Y", "i2", 0},
		{"I2I2", "i2", 1},
		{"I2 = 40% and I2 = 12%", "i2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rec := ex.Extract(tt.text)[tt.cat]
			assert.Equal(t, tt.count, rec.Count)
			assert.Equal(t, tt.count > 0, rec.Present)
		})
	}
}
