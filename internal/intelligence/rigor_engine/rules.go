package rigor_engine

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	fx "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// ---------------------------------------------------------------------------
// Rule contract
// ---------------------------------------------------------------------------

// Outcome is what a single rule contributes to a report.
type Outcome struct {
	Gaps            []audit.Finding
	Strengths       []audit.Finding
	Recommendations []audit.Recommendation
}

func (o *Outcome) gap(f audit.FeatureMap, message, category string) {
	o.Gaps = append(o.Gaps, audit.Finding{Message: message, Evidence: evidenceFor(f, category)})
}

func (o *Outcome) gapWithEvidence(message, evidence string) {
	o.Gaps = append(o.Gaps, audit.Finding{Message: message, Evidence: evidence})
}

func (o *Outcome) strength(f audit.FeatureMap, message, category string) {
	o.Strengths = append(o.Strengths, audit.Finding{Message: message, Evidence: evidenceFor(f, category)})
}

func (o *Outcome) recommend(item, issue, recommendation, excerpt string) {
	o.Recommendations = append(o.Recommendations, audit.Recommendation{
		Item:           item,
		Issue:          issue,
		Recommendation: recommendation,
		SourceExcerpt:  excerpt,
	})
}

// Rule is one independent audit check over a FeatureMap.
type Rule interface {
	Name() string
	Apply(features audit.FeatureMap, sc StudyContext) Outcome
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(features audit.FeatureMap, sc StudyContext) Outcome
}

func (r RuleFunc) Name() string { return r.RuleName }

func (r RuleFunc) Apply(features audit.FeatureMap, sc StudyContext) Outcome {
	return r.Fn(features, sc)
}

// evidenceFor picks the best quote for category: the context of its first
// example, else up to three unique matches.
func evidenceFor(f audit.FeatureMap, category string) string {
	rec := f.Get(category)
	if len(rec.Examples) > 0 {
		return "..." + rec.Examples[0].Context + "..."
	}
	if n := len(rec.UniqueMatches); n > 0 {
		if n > 3 {
			n = 3
		}
		return "Found terms: " + strings.Join(rec.UniqueMatches[:n], ", ")
	}
	return "No direct quote found."
}

func joined(f audit.FeatureMap, categories ...string) string {
	var parts []string
	for _, c := range categories {
		parts = append(parts, f.Get(c).UniqueMatches...)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(text string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// statsText pools the test and model vocabulary several rules inspect.
func statsText(f audit.FeatureMap) string {
	return joined(f, fx.CatComparativeStats, fx.CatRegressionAndModels, fx.CatAdvancedModeling)
}

var (
	noAdjustmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`no adjustment`),
		regexp.MustCompile(`no correction`),
		regexp.MustCompile(`nominal`),
		regexp.MustCompile(`no.*hypothesis testing`),
	}
	softwareVersionPattern = regexp.MustCompile(`(v\.?|version\s*|\s)\d`)
	baselinePValuePattern  = regexp.MustCompile(`\bp\s*[=<>≤≥]`)
)

// explicitNoAdjustment reports whether the multiplicity evidence disclaims
// any correction.
func explicitNoAdjustment(f audit.FeatureMap) bool {
	text := joined(f, fx.CatMultiplicityCorrection)
	for _, re := range noAdjustmentPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// adequateMultiplicity is true when correction is reported and not disclaimed.
func adequateMultiplicity(f audit.FeatureMap) bool {
	return f.Has(fx.CatMultiplicityCorrection) && !explicitNoAdjustment(f)
}

// ---------------------------------------------------------------------------
// Rule chain
// ---------------------------------------------------------------------------

// silentMultiplicityThreshold is the p-value count above which missing
// correction language becomes a gap.
const silentMultiplicityThreshold = 5

// DefaultRules returns the built-in rule chain in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		RuleFunc{"multiplicity", ruleMultiplicity},
		RuleFunc{"parametric_assumptions", ruleParametricAssumptions},
		RuleFunc{"missing_data", ruleMissingData},
		RuleFunc{"sample_size", ruleSampleSize},
		RuleFunc{"blinding_concealment", ruleBlinding},
		RuleFunc{"software_versions", ruleSoftwareVersions},
		RuleFunc{"effect_size", ruleEffectSize},
		RuleFunc{"post_hoc", rulePostHoc},
		RuleFunc{"paired_categorical", rulePairedCategorical},
		RuleFunc{"longitudinal_clustering", ruleLongitudinal},
		RuleFunc{"anova_post_hoc", ruleAnovaPostHoc},
		RuleFunc{"survival_assumption", ruleSurvival},
		RuleFunc{"baseline_p_values", ruleBaselinePValues},
		RuleFunc{"exact_p_values", ruleExactPValues},
		RuleFunc{"transparency", ruleTransparency},
		RuleFunc{"meta_analysis", ruleMetaAnalysis},
		RuleFunc{"diagnostic_metrics", ruleDiagnosticMetrics},
		RuleFunc{"registration", ruleRegistration},
	}
}

func ruleMultiplicity(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	nPValues := f.Get(fx.CatPValues).Count
	switch {
	case f.Has(fx.CatMultiplicityCorrection) && explicitNoAdjustment(f):
		o.gap(f, "Explicitly stated that no multiplicity correction or formal hypothesis testing was performed.", fx.CatMultiplicityCorrection)
		o.recommend("Multiplicity", "Lack of correction increases Type I error.",
			"Use Bonferroni or FDR, or label as exploratory.",
			truncateRunes(joined(f, fx.CatMultiplicityCorrection), 100))
	case f.Has(fx.CatMultiplicityCorrection):
		o.strength(f, "Explicitly addressed multiplicity correction for multiple comparisons.", fx.CatMultiplicityCorrection)
	case nPValues > silentMultiplicityThreshold:
		o.gap(f, fmt.Sprintf("Detected high number of P-values (%d) without explicit mention of multiplicity correction.", nPValues), fx.CatPValues)
		o.recommend("Multiplicity", "Multiple testing without correction inflates false positive rate.",
			"Apply correction (e.g., Bonferroni, Holm) or specify a priori hypotheses.",
			"High P-value count, no 'correction' terms.")
	}
	return
}

func ruleParametricAssumptions(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	stats := statsText(f)
	if !containsAny(stats, "t-test", "anova", "linear model") || f.Has(fx.CatNormalityChecks) {
		return
	}
	var found []string
	for _, t := range []string{"t-test", "anova"} {
		if strings.Contains(stats, t) {
			found = append(found, t)
		}
	}
	o.gap(f, "Parametric tests used without documented normality checks.", fx.CatComparativeStats)
	o.recommend("Assumptions", "Parametric tests assume normality.",
		"Report Shapiro-Wilk/KS test or use non-parametric tests.",
		"Found parametric tests: "+strings.Join(found, ", "))
	return
}

func ruleMissingData(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatMissingData) {
		return
	}
	missing := joined(f, fx.CatMissingData)
	if strings.Contains(missing, "imputation") && !strings.Contains(missing, "no imputation") {
		o.strength(f, "Addressed missing data using imputation methods.", fx.CatMissingData)
		return
	}
	models := joined(f, fx.CatAdvancedModeling, fx.CatRegressionAndModels)
	if containsAny(models, "mixed", "mmrm", "glmm", "gee", "multilevel", "hierarchical") {
		o.strength(f, "Used Mixed Models (MMRM/GLMM) which can handle missing data under MAR.", fx.CatAdvancedModeling)
		return
	}
	o.gap(f, "Missing data handled via complete-case analysis (potential bias).", fx.CatMissingData)
	return
}

func ruleSampleSize(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsBasicScience || sc.IsNonResearch || f.Has(fx.CatSampleSize) {
		return
	}
	o.gap(f, "Sample size justification lacks explicit power calculation details.", fx.CatSampleSize)
	o.recommend("Sample Size", "No power calculation found.",
		"Provide alpha, power, and effect size parameters.",
		"No matches for 'power' or 'sample size calculation'")
	return
}

func ruleBlinding(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsBasicScience || sc.IsObservational || sc.IsNonResearch {
		return
	}
	if !f.Has(fx.CatBlinding) {
		o.gapWithEvidence("Reporting of blinding or masking procedure is missing.", "No matches for 'blinded' or 'masked'")
		return
	}
	o.strength(f, "Blinding of participants/assessors documented.", fx.CatBlinding)
	if !f.Has(fx.CatAllocationConcealment) {
		o.gap(f, "Blinding present but allocation concealment details missing.", fx.CatBlinding)
		o.recommend("Allocation Concealment", "Method of concealment (e.g. opaque envelopes) not described.",
			"Specify how randomization sequence was concealed.",
			"Blinding found but no 'concealment' terms.")
	}
	return
}

func ruleSoftwareVersions(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatSoftware) {
		return
	}
	for _, s := range f.Get(fx.CatSoftware).UniqueMatches {
		if softwareVersionPattern.MatchString(s) {
			o.strength(f, "Detailed software versions provided.", fx.CatSoftware)
			return
		}
	}
	o.gap(f, "Software mentioned without specific versions.", fx.CatSoftware)
	return
}

func ruleEffectSize(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	if f.Has(fx.CatEffectSize) {
		o.strength(f, "Reported effect sizes (e.g., OR, HR, MD) alongside statistical significance.", fx.CatEffectSize)
	} else if f.Has(fx.CatPValues) {
		o.gap(f, "P-values reported without effect sizes (e.g. Odds Ratio).", fx.CatPValues)
	}
	return
}

func rulePostHoc(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatPostHoc) {
		return
	}
	if adequateMultiplicity(f) {
		o.strength(f, "Performed pre-planned or correctly adjusted post hoc comparisons.", fx.CatPostHoc)
		return
	}
	term := "Post-hoc terms"
	if m := f.Get(fx.CatPostHoc).UniqueMatches; len(m) > 0 {
		term = m[0]
	}
	o.gap(f, "Includes exploratory/post hoc analyses without clear multiplicity correction.", fx.CatPostHoc)
	o.recommend("Deductive Rigor", "Post hoc findings are hypothesis-generating.",
		"Distinguish between pre-specified endpoints and exploratory analyses.",
		fmt.Sprintf("Found term '%s' without rigorous correction.", term))
	return
}

func rulePairedCategorical(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	stats := statsText(f)
	if f.Has(fx.CatDependency) {
		if containsAny(stats, "paired", "wilcoxon", "repeated", "within-subject") {
			o.strength(f, "Appropriately used paired tests for dependent data.", fx.CatDependency)
		} else {
			o.gap(f, "Paired data mentioned but no paired statistical tests found.", fx.CatDependency)
		}
	}
	categorical := containsAny(joined(f, fx.CatDataTypes), "categorical", "frequencies", "proportions")
	if categorical && !containsAny(stats, "chi-square", "fisher", "logistic", "chi2") {
		o.gap(f, "Categorical data mentioned, but no appropriate categorical tests found.", fx.CatDataTypes)
	}
	return
}

func ruleLongitudinal(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	depClust := joined(f, fx.CatDependency, fx.CatClustering)
	if !containsAny(depClust, "repeated measures", "longitudinal", "cluster", "nested") {
		return
	}
	models := statsText(f) + " " + joined(f, fx.CatModelDetails)
	if containsAny(models, "mixed-effect", "mixed model", "lmm", "glmm", "mmrm", "gee", "multilevel",
		"hierarchical", "random intercept", "random slope", "random effect") {
		o.strength(f, "Accounted for data dependency using advanced modeling.", fx.CatAdvancedModeling)
		return
	}
	depMatch := "Longitudinal data"
	for _, w := range strings.Fields(depClust) {
		if w == "repeated" || w == "longitudinal" || w == "cluster" || w == "nested" {
			depMatch = w
			break
		}
	}
	o.gap(f, "Longitudinal/clustered data detected without hierarchical modeling.", fx.CatDependency)
	o.recommend("Statistical Architecture", "Clustered/repeated data requires hierarchical models.",
		"Use LMM, GLMM, or GEE.",
		fmt.Sprintf("Found '%s' but no mixed-effects models.", depMatch))
	return
}

func ruleAnovaPostHoc(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	if strings.Contains(statsText(f), "anova") && !f.Has(fx.CatPostHoc) {
		o.gap(f, "ANOVA mentioned without specifying post-hoc tests.", fx.CatComparativeStats)
	}
	return
}

func ruleSurvival(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatSurvivalAnalysis) {
		return
	}
	checks := joined(f, fx.CatAssumptionChecks)
	if containsAny(checks, "schoenfeld", "proportional hazards") {
		o.strength(f, "Verified proportional hazards assumption.", fx.CatAssumptionChecks)
	} else {
		o.gap(f, "Survival analysis used without verifying proportional hazards assumption.", fx.CatSurvivalAnalysis)
	}
	return
}

func ruleBaselinePValues(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatRandomization) || !f.Has(fx.CatBaselineReporting) {
		return
	}
	for _, e := range f.Get(fx.CatBaselineReporting).Examples {
		text := strings.ToLower(e.MatchedText + " " + e.Context)
		if baselinePValuePattern.MatchString(text) {
			o.gap(f, "Potential use of P-values for baseline comparisons in an RCT.", fx.CatBaselineReporting)
			return
		}
	}
	return
}

func ruleExactPValues(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsBasicScience || sc.IsNonResearch || !f.Has(fx.CatPValues) {
		return
	}
	for _, e := range f.Get(fx.CatPValues).Examples {
		if strings.Contains(e.MatchedText, "=") {
			return
		}
	}
	o.gap(f, "P-values reported only as thresholds (e.g., P<0.05).", fx.CatPValues)
	return
}

func ruleTransparency(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch {
		return
	}
	extra := joined(f, fx.CatAdvancedModelingExtra)
	if containsAny(extra, "exclud", "exclusion") {
		o.strength(f, "Exclusion criteria explicitly defined (transparency).", fx.CatAdvancedModelingExtra)
	}
	if containsAny(extra, "compliance", "attrition") {
		o.strength(f, "Documented participant compliance or attrition.", fx.CatAdvancedModelingExtra)
	}
	return
}

func ruleMetaAnalysis(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	rec := f.Get(fx.CatSystematicReviewMetrics)
	if sc.IsNonResearch || !rec.Present {
		return
	}
	sr := joined(f, fx.CatSystematicReviewMetrics)
	if rec.Count <= 1 && !containsAny(sr, "sucra", "i2", "heterogeneity", "credible interval", "dic") {
		return
	}
	o.strength(f, "Detailed reporting of network/meta-analysis metrics.", fx.CatSystematicReviewMetrics)
	if strings.Contains(sr, "credible interval") {
		o.strength(f, "Used Bayesian framework for evidence synthesis.", fx.CatSystematicReviewMetrics)
	}
	if containsAny(sr, "i2", "heterogeneity") && !strings.Contains(sr, "threshold") && !sc.IsBasicScience {
		o.gap(f, "Heterogeneity (I2) mentioned without significance threshold.", fx.CatSystematicReviewMetrics)
	}
	if containsAny(sr, "fragmented", "fragmentation", "disconnected") {
		o.gap(f, "Network fragmentation detected in systematic review.", fx.CatSystematicReviewMetrics)
	}
	return
}

func ruleDiagnosticMetrics(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatDiagnosticMetrics) {
		return
	}
	o.strength(f, "Reported diagnostic metrics (AUC/ROC).", fx.CatDiagnosticMetrics)
	diag := joined(f, fx.CatDiagnosticMetrics)
	if containsAny(diag, "auc", "roc", "area under", "receiver operating") && !f.Has(fx.CatConfidenceIntervals) {
		o.gap(f, "Diagnostic metrics reported without Confidence Intervals.", fx.CatDiagnosticMetrics)
	}
	return
}

func ruleRegistration(f audit.FeatureMap, sc StudyContext) (o Outcome) {
	if sc.IsNonResearch || !f.Has(fx.CatRegistration) {
		return
	}
	o.strength(f, "Trial or protocol registration reported.", fx.CatRegistration)
	return
}
