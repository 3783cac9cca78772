package rigor_engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

func gapMessages(o Outcome) []string {
	out := make([]string, len(o.Gaps))
	for i, g := range o.Gaps {
		out[i] = g.Message
	}
	return out
}

func strengthMessages(o Outcome) []string {
	out := make([]string, len(o.Strengths))
	for i, s := range o.Strengths {
		out[i] = s.Message
	}
	return out
}

func TestEvidenceFor(t *testing.T) {
	fm := audit.FeatureMap{
		"with_examples": {Present: true, Count: 1, UniqueMatches: []string{"x"},
			Examples: []audit.MatchEvidence{{MatchedText: "x", Context: "the x here"}}},
		"matches_only": {Present: true, Count: 4, UniqueMatches: []string{"a", "b", "c", "d"}},
	}
	assert.Equal(t, "...the x here...", evidenceFor(fm, "with_examples"))
	assert.Equal(t, "Found terms: a, b, c", evidenceFor(fm, "matches_only"))
	assert.Equal(t, "No direct quote found.", evidenceFor(fm, "absent"))
}

func TestRuleMultiplicity(t *testing.T) {
	t.Run("explicit no adjustment", func(t *testing.T) {
		fm := audit.FeatureMap{fx.CatMultiplicityCorrection: rec("no adjustment was made for multiple")}
		o := ruleMultiplicity(fm, StudyContext{})
		assert.Equal(t, []string{"Explicitly stated that no multiplicity correction or formal hypothesis testing was performed."}, gapMessages(o))
		require.Len(t, o.Recommendations, 1)
		assert.Equal(t, "no adjustment was made for multiple", o.Recommendations[0].SourceExcerpt)
	})

	t.Run("correction reported", func(t *testing.T) {
		fm := audit.FeatureMap{fx.CatMultiplicityCorrection: rec("Holm")}
		o := ruleMultiplicity(fm, StudyContext{})
		assert.Empty(t, o.Gaps)
		assert.Equal(t, []string{"Explicitly addressed multiplicity correction for multiple comparisons."}, strengthMessages(o))
	})

	t.Run("silent multiplicity", func(t *testing.T) {
		fm := audit.FeatureMap{fx.CatPValues: rec("p = 0.1", "p = 0.2", "p = 0.3", "p = 0.4", "p = 0.5", "p = 0.6")}
		o := ruleMultiplicity(fm, StudyContext{})
		assert.Equal(t, []string{"Detected high number of P-values (6) without explicit mention of multiplicity correction."}, gapMessages(o))
		require.Len(t, o.Recommendations, 1)
		assert.Equal(t, "High P-value count, no 'correction' terms.", o.Recommendations[0].SourceExcerpt)
	})

	t.Run("five p-values is not enough", func(t *testing.T) {
		fm := audit.FeatureMap{fx.CatPValues: rec("p = 0.1", "p = 0.2", "p = 0.3", "p = 0.4", "p = 0.5")}
		assert.Empty(t, ruleMultiplicity(fm, StudyContext{}).Gaps)
	})

	t.Run("non research", func(t *testing.T) {
		fm := audit.FeatureMap{fx.CatMultiplicityCorrection: rec("Bonferroni")}
		assert.Empty(t, ruleMultiplicity(fm, StudyContext{IsNonResearch: true}).Strengths)
	})
}

func TestRuleParametricAssumptions(t *testing.T) {
	fm := audit.FeatureMap{
		fx.CatComparativeStats:    rec("t-test"),
		fx.CatRegressionAndModels: rec("ANOVA"),
	}
	o := ruleParametricAssumptions(fm, StudyContext{})
	assert.Equal(t, []string{"Parametric tests used without documented normality checks."}, gapMessages(o))
	require.Len(t, o.Recommendations, 1)
	assert.Equal(t, "Found parametric tests: t-test, anova", o.Recommendations[0].SourceExcerpt)

	fm[fx.CatNormalityChecks] = rec("Shapiro-Wilk")
	assert.Empty(t, ruleParametricAssumptions(fm, StudyContext{}).Gaps)
}

func TestRuleMissingData(t *testing.T) {
	tests := []struct {
		name     string
		fm       audit.FeatureMap
		gap      bool
		strength string
	}{
		{
			name:     "imputation",
			fm:       audit.FeatureMap{fx.CatMissingData: rec("multiple imputation", "imputation")},
			strength: "Addressed missing data using imputation methods.",
		},
		{
			name: "imputation disclaimed and mixed model",
			fm: audit.FeatureMap{
				fx.CatMissingData:      rec("no imputation", "imputation"),
				fx.CatAdvancedModeling: rec("linear mixed model"),
			},
			strength: "Used Mixed Models (MMRM/GLMM) which can handle missing data under MAR.",
		},
		{
			name: "complete case",
			fm:   audit.FeatureMap{fx.CatMissingData: rec("missing values")},
			gap:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := ruleMissingData(tt.fm, StudyContext{})
			if tt.gap {
				assert.Equal(t, []string{"Missing data handled via complete-case analysis (potential bias)."}, gapMessages(o))
				return
			}
			assert.Empty(t, o.Gaps)
			assert.Equal(t, []string{tt.strength}, strengthMessages(o))
		})
	}
}

func TestRuleSampleSizeGating(t *testing.T) {
	assert.Len(t, ruleSampleSize(audit.FeatureMap{}, StudyContext{}).Gaps, 1)
	assert.Empty(t, ruleSampleSize(audit.FeatureMap{}, StudyContext{IsBasicScience: true}).Gaps)
	assert.Empty(t, ruleSampleSize(audit.FeatureMap{}, StudyContext{IsNonResearch: true}).Gaps)
	assert.Empty(t, ruleSampleSize(audit.FeatureMap{fx.CatSampleSize: rec("n = 40")}, StudyContext{}).Gaps)
}

func TestRuleBlinding(t *testing.T) {
	o := ruleBlinding(audit.FeatureMap{}, StudyContext{})
	require.Len(t, o.Gaps, 1)
	assert.Equal(t, "No matches for 'blinded' or 'masked'", o.Gaps[0].Evidence)

	o = ruleBlinding(audit.FeatureMap{fx.CatBlinding: rec("blinded")}, StudyContext{})
	assert.Equal(t, []string{"Blinding present but allocation concealment details missing."}, gapMessages(o))
	assert.Equal(t, []string{"Blinding of participants/assessors documented."}, strengthMessages(o))
	require.Len(t, o.Recommendations, 1)
	assert.Equal(t, "Allocation Concealment", o.Recommendations[0].Item)

	o = ruleBlinding(audit.FeatureMap{}, StudyContext{IsObservational: true})
	assert.Empty(t, o.Gaps)
}

func TestRuleSoftwareVersions(t *testing.T) {
	tests := []struct {
		match   string
		version bool
	}{
		{"SAS", false},
		{"Matlab", false},
		{"R version 4", true},
		{"GraphPad Prism 9", true},
		{"SPSS v25", true},
		{"Python 3.10", true},
	}
	for _, tt := range tests {
		t.Run(tt.match, func(t *testing.T) {
			o := ruleSoftwareVersions(audit.FeatureMap{fx.CatSoftware: rec(tt.match)}, StudyContext{})
			if tt.version {
				assert.Equal(t, []string{"Detailed software versions provided."}, strengthMessages(o))
				assert.Empty(t, o.Gaps)
			} else {
				assert.Equal(t, []string{"Software mentioned without specific versions."}, gapMessages(o))
			}
		})
	}
}

func TestRuleEffectSize(t *testing.T) {
	o := ruleEffectSize(audit.FeatureMap{fx.CatEffectSize: rec("Cohen's d")}, StudyContext{})
	assert.Len(t, o.Strengths, 1)
	assert.Empty(t, o.Gaps)

	o = ruleEffectSize(audit.FeatureMap{fx.CatPValues: rec("p = 0.01")}, StudyContext{})
	assert.Equal(t, []string{"P-values reported without effect sizes (e.g. Odds Ratio)."}, gapMessages(o))

	assert.Empty(t, ruleEffectSize(audit.FeatureMap{}, StudyContext{}).Gaps)
}

func TestRulePostHoc(t *testing.T) {
	fm := audit.FeatureMap{fx.CatPostHoc: rec("post hoc", "Dunn")}
	o := rulePostHoc(fm, StudyContext{})
	assert.Equal(t, []string{"Includes exploratory/post hoc analyses without clear multiplicity correction."}, gapMessages(o))
	require.Len(t, o.Recommendations, 1)
	assert.Equal(t, "Found term 'post hoc' without rigorous correction.", o.Recommendations[0].SourceExcerpt)

	fm[fx.CatMultiplicityCorrection] = rec("Bonferroni")
	o = rulePostHoc(fm, StudyContext{})
	assert.Empty(t, o.Gaps)
	assert.Equal(t, []string{"Performed pre-planned or correctly adjusted post hoc comparisons."}, strengthMessages(o))
}

func TestRulePairedCategorical(t *testing.T) {
	fm := audit.FeatureMap{fx.CatDependency: rec("paired samples")}
	assert.Equal(t, []string{"Paired data mentioned but no paired statistical tests found."},
		gapMessages(rulePairedCategorical(fm, StudyContext{})))

	fm[fx.CatComparativeStats] = rec("Wilcoxon")
	o := rulePairedCategorical(fm, StudyContext{})
	assert.Empty(t, o.Gaps)
	assert.Equal(t, []string{"Appropriately used paired tests for dependent data."}, strengthMessages(o))

	cat := audit.FeatureMap{fx.CatDataTypes: rec("categorical")}
	assert.Equal(t, []string{"Categorical data mentioned, but no appropriate categorical tests found."},
		gapMessages(rulePairedCategorical(cat, StudyContext{})))

	cat[fx.CatComparativeStats] = rec("chi-square")
	assert.Empty(t, rulePairedCategorical(cat, StudyContext{}).Gaps)
}

func TestRuleLongitudinal(t *testing.T) {
	fm := audit.FeatureMap{fx.CatDependency: rec("longitudinal")}
	o := ruleLongitudinal(fm, StudyContext{})
	assert.Equal(t, []string{"Longitudinal/clustered data detected without hierarchical modeling."}, gapMessages(o))
	require.Len(t, o.Recommendations, 1)
	assert.Equal(t, "Found 'longitudinal' but no mixed-effects models.", o.Recommendations[0].SourceExcerpt)

	fm[fx.CatModelDetails] = rec("random intercepts")
	o = ruleLongitudinal(fm, StudyContext{})
	assert.Empty(t, o.Gaps)
	assert.Equal(t, []string{"Accounted for data dependency using advanced modeling."}, strengthMessages(o))

	clustered := audit.FeatureMap{
		fx.CatClustering:       rec("cluster"),
		fx.CatAdvancedModeling: rec("GEE"),
	}
	assert.Empty(t, ruleLongitudinal(clustered, StudyContext{}).Gaps)

	fallback := audit.FeatureMap{fx.CatDependency: rec("repeated measures")}
	o = ruleLongitudinal(fallback, StudyContext{})
	require.Len(t, o.Recommendations, 1)
	assert.Equal(t, "Found 'repeated' but no mixed-effects models.", o.Recommendations[0].SourceExcerpt)
}

func TestRuleAnovaPostHoc(t *testing.T) {
	fm := audit.FeatureMap{fx.CatRegressionAndModels: rec("ANOVA")}
	assert.Equal(t, []string{"ANOVA mentioned without specifying post-hoc tests."},
		gapMessages(ruleAnovaPostHoc(fm, StudyContext{})))

	fm[fx.CatPostHoc] = rec("Tukey")
	assert.Empty(t, ruleAnovaPostHoc(fm, StudyContext{}).Gaps)
}

func TestRuleSurvival(t *testing.T) {
	fm := audit.FeatureMap{fx.CatSurvivalAnalysis: rec("Kaplan-Meier")}
	assert.Equal(t, []string{"Survival analysis used without verifying proportional hazards assumption."},
		gapMessages(ruleSurvival(fm, StudyContext{})))

	fm[fx.CatAssumptionChecks] = rec("Schoenfeld residuals")
	o := ruleSurvival(fm, StudyContext{})
	assert.Empty(t, o.Gaps)
	assert.Equal(t, []string{"Verified proportional hazards assumption."}, strengthMessages(o))
}

func TestRuleBaselinePValues(t *testing.T) {
	fm := audit.FeatureMap{
		fx.CatRandomization: rec("randomized"),
		fx.CatBaselineReporting: {Present: true, Count: 1, UniqueMatches: []string{"baseline characteristics"},
			Examples: []audit.MatchEvidence{{MatchedText: "baseline characteristics", Context: "baseline characteristics were similar (P=0.42)"}}},
	}
	assert.Equal(t, []string{"Potential use of P-values for baseline comparisons in an RCT."},
		gapMessages(ruleBaselinePValues(fm, StudyContext{})))

	fm[fx.CatBaselineReporting] = rec("Table 1")
	assert.Empty(t, ruleBaselinePValues(fm, StudyContext{}).Gaps)

	delete(fm, fx.CatRandomization)
	assert.Empty(t, ruleBaselinePValues(fm, StudyContext{}).Gaps)
}

func TestRuleExactPValues(t *testing.T) {
	thresholds := audit.FeatureMap{fx.CatPValues: rec("P < 0.05")}
	assert.Len(t, ruleExactPValues(thresholds, StudyContext{}).Gaps, 1)
	assert.Empty(t, ruleExactPValues(thresholds, StudyContext{IsBasicScience: true}).Gaps)

	exact := audit.FeatureMap{fx.CatPValues: rec("P < 0.05", "p = 0.013")}
	assert.Empty(t, ruleExactPValues(exact, StudyContext{}).Gaps)
}

func TestRuleTransparency(t *testing.T) {
	fm := audit.FeatureMap{fx.CatAdvancedModelingExtra: rec("exclusion criteria", "attrition")}
	assert.Equal(t, []string{
		"Exclusion criteria explicitly defined (transparency).",
		"Documented participant compliance or attrition.",
	}, strengthMessages(ruleTransparency(fm, StudyContext{})))
}

func TestRuleMetaAnalysis(t *testing.T) {
	fm := audit.FeatureMap{fx.CatSystematicReviewMetrics: rec("SUCRA", "I2", "credible interval")}
	o := ruleMetaAnalysis(fm, StudyContext{})
	assert.Equal(t, []string{
		"Detailed reporting of network/meta-analysis metrics.",
		"Used Bayesian framework for evidence synthesis.",
	}, strengthMessages(o))
	assert.Equal(t, []string{"Heterogeneity (I2) mentioned without significance threshold."}, gapMessages(o))

	fm = audit.FeatureMap{fx.CatSystematicReviewMetrics: rec("I2", "heterogeneity threshold")}
	assert.Empty(t, ruleMetaAnalysis(fm, StudyContext{}).Gaps)

	fm = audit.FeatureMap{fx.CatSystematicReviewMetrics: rec("DIC", "network fragmentation")}
	assert.Equal(t, []string{"Network fragmentation detected in systematic review."}, gapMessages(ruleMetaAnalysis(fm, StudyContext{})))

	fm = audit.FeatureMap{fx.CatSystematicReviewMetrics: rec("rankogram")}
	o = ruleMetaAnalysis(fm, StudyContext{})
	assert.Empty(t, o.Strengths)
	assert.Empty(t, o.Gaps)
}

func TestRuleDiagnosticMetrics(t *testing.T) {
	fm := audit.FeatureMap{fx.CatDiagnosticMetrics: rec("AUC")}
	o := ruleDiagnosticMetrics(fm, StudyContext{})
	assert.Equal(t, []string{"Reported diagnostic metrics (AUC/ROC)."}, strengthMessages(o))
	assert.Equal(t, []string{"Diagnostic metrics reported without Confidence Intervals."}, gapMessages(o))

	fm[fx.CatConfidenceIntervals] = rec("95% CI")
	assert.Empty(t, ruleDiagnosticMetrics(fm, StudyContext{}).Gaps)

	ppv := audit.FeatureMap{fx.CatDiagnosticMetrics: rec("positive predictive value")}
	assert.Empty(t, ruleDiagnosticMetrics(ppv, StudyContext{}).Gaps)
}

func TestRuleRegistration(t *testing.T) {
	fm := audit.FeatureMap{fx.CatRegistration: rec("NCT01234567")}
	assert.Equal(t, []string{"Trial or protocol registration reported."}, strengthMessages(ruleRegistration(fm, StudyContext{})))
	assert.Empty(t, ruleRegistration(fm, StudyContext{IsNonResearch: true}).Strengths)
}

func TestRules_SkippedForNonResearch(t *testing.T) {
	fm := audit.FeatureMap{
		fx.CatSurvivalAnalysis:        rec("Kaplan-Meier"),
		fx.CatAssumptionChecks:        rec("Schoenfeld residuals"),
		fx.CatAdvancedModelingExtra:   rec("exclusion criteria", "attrition"),
		fx.CatSystematicReviewMetrics: rec("SUCRA", "I2", "credible interval"),
		fx.CatDiagnosticMetrics:       rec("AUC"),
		fx.CatRandomization:           rec("randomized"),
		fx.CatBaselineReporting:       rec("baseline characteristics (P=0.42)"),
		fx.CatPValues:                 rec("P < 0.05"),
		fx.CatMultiplicityCorrection:  rec("Bonferroni"),
		fx.CatRegistration:            rec("NCT01234567"),
	}
	sc := StudyContext{IsNonResearch: true}
	for _, r := range DefaultRules() {
		o := r.Apply(fm, sc)
		assert.Empty(t, o.Gaps, r.Name())
		assert.Empty(t, o.Strengths, r.Name())
		assert.Empty(t, o.Recommendations, r.Name())
	}
}
