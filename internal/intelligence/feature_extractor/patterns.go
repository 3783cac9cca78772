package feature_extractor

// Category names of the built-in taxonomy. The rule engine reads these keys.
const (
	CatSampleSize              = "sample_size"
	CatRandomization           = "randomization"
	CatBlinding                = "blinding"
	CatAllocationConcealment   = "allocation_concealment"
	CatInteractionSubgroup     = "interaction_subgroup"
	CatStudyDesign             = "study_design"
	CatParticipants            = "participants"
	CatRegistration            = "registration"
	CatVariableDefinitions     = "variable_definitions"
	CatAnalysisPrinciples      = "analysis_principles"
	CatITTDetails              = "itt_details"
	CatSoftware                = "software"
	CatErrorMeasures           = "error_measures"
	CatMultiplicityCorrection  = "multiplicity_correction"
	CatNormalityChecks         = "normality_checks"
	CatPValues                 = "p_values"
	CatConfidenceIntervals     = "confidence_intervals"
	CatComparativeStats        = "comparative_stats"
	CatNonParametric           = "non_parametric"
	CatAdvancedModeling        = "advanced_modeling"
	CatModelDetails            = "model_details"
	CatAssumptionChecks        = "assumption_checks"
	CatSurvivalAnalysis        = "survival_analysis"
	CatRegressionAndModels     = "regression_and_models"
	CatReportingGuidelines     = "reporting_guidelines"
	CatDataTypes               = "data_types"
	CatDependency              = "dependency"
	CatClustering              = "clustering"
	CatMissingData             = "missing_data"
	CatEffectSize              = "effect_size"
	CatPostHoc                 = "post_hoc"
	CatBaselineReporting       = "baseline_reporting"
	CatAdvancedModelingExtra   = "advanced_modeling_extra"
	CatSystematicReviewMetrics = "systematic_review_metrics"
	CatDiagnosticMetrics       = "diagnostic_metrics"
	CatDomainIndicators        = "domain_indicators"
)

// DefaultCategoryDefs returns a fresh copy of the built-in category table.
// Callers may extend it before handing it to NewTaxonomy.
func DefaultCategoryDefs() []CategoryDef {
	return []CategoryDef{
		// Study design and sampling
		{Name: CatSampleSize, Rules: []PatternRule{
			CI(`n\s*=\s*\d+`), CI(`sample size`), CI(`total of \d+`), CI(`enrolled \d+`),
			CI(`power calculation`), CI(`power analysis`), CI(`statistical power`),
			CI(`G\*Power`), CI(`approximate`), CI(`initially calculated`),
		}},
		{Name: CatRandomization, Rules: []PatternRule{
			CI(`randomized`), CI(`randomisation`), CI(`randomization`), CI(`randomised`),
			CI(`randomly assigned`), CI(`randomly allocated`), CI(`random allocation`),
			CI(`random number generator`), CI(`stratified`),
		}},
		{Name: CatBlinding, Rules: []PatternRule{
			CI(`blinded`), CI(`blinding`), CI(`double-blind`), CI(`single-blind`),
			CI(`masking`), CI(`masked`), CI(`allocation concealment`),
		}},
		{Name: CatAllocationConcealment, Rules: []PatternRule{
			CI(`allocation concealment`), CI(`sequentially numbered`), CI(`opaque envelopes`),
			CI(`central(ized)? randomi[sz]ation`), CI(`concealed allocation`),
		}},
		{Name: CatInteractionSubgroup, Rules: []PatternRule{
			CI(`interaction (effect|test|term)`), CI(`subgroup analysis`), CI(`stratified analysis`),
			CI(`heterogeneity of treatment`), CI(`post-hoc subgroup`),
		}},
		{Name: CatStudyDesign, Rules: []PatternRule{
			CI(`clinical trial`), CI(`cohort`), CI(`retrospective`), CI(`prospective`),
			CI(`case-control`), CI(`cross-sectional`), CI(`registry`), CI(`observational`),
			CI(`questionnaire`), CI(`survey`), CI(`qualitative`), CI(`interviews?`),
			CI(`phase [123] (clinical )?(trial|study)`), Strict(`RCT`),
		}},
		{Name: CatParticipants, Rules: []PatternRule{
			CI(`\bpatients?\b`), CI(`participants?`), CI(`human subjects`), CI(`healthy volunteers`),
		}},
		{Name: CatRegistration, Rules: []PatternRule{
			CI(`clinicaltrials\.gov`), Strict(`NCT\d{8}`), Strict(`ISRCTN\d+`), Strict(`PROSPERO`),
			CI(`pre-?registered`), CI(`trial registration`),
		}},

		// Variables and measures
		{Name: CatVariableDefinitions, Rules: []PatternRule{
			CI(`centrally determined`), CI(`central laboratory`), CI(`immunohistochemical analysis`),
			CI(`standardized assessment`), CI(`endpoint definition`), CI(`outcome measure`),
		}},

		// Analysis principles
		{Name: CatAnalysisPrinciples, Rules: []PatternRule{
			CI(`intention-to-treat`), Strict(`ITT`), CI(`per-protocol`), CI(`modified ITT`),
			CI(`completer analysis`),
		}},
		{Name: CatITTDetails, Rules: []PatternRule{
			CI(`intention-to-treat (analysis|approach|population)`), CI(`analyzed based on initial assignment`),
			CI(`all patients who were randomi[sz]ed`),
		}},
		{Name: CatSoftware, Rules: []PatternRule{
			Strict(`SAS`), CI(`R version \d+(\.\d+)*`), CI(`GraphPad Prism( version \d+| v?\d+)?`),
			Strict(`SPSS( version \d+| v\d+)?`), CI(`Stata( version \d+)?`), CI(`Python \d+(\.\d+)*`),
			CI(`Matlab`),
		}},
		{Name: CatErrorMeasures, Rules: []PatternRule{
			CI(`standard deviation`), Strict(`sd`), Strict(`SD`), CI(`standard error`), Strict(`sem`),
			Strict(`SEM`), CI(`interquartile range`), Strict(`iqr`), Strict(`IQR`),
		}},
		{Name: CatMultiplicityCorrection, Rules: []PatternRule{
			CI(`bonferroni`), CI(`benjamini-hochberg`), CI(`\bholm(-bonferroni)?\b`), CI(`false discovery rate`),
			CI(`multiple (comparisons|testing)`), CI(`adjustment for multiplicity`), CI(`tukey`),
			CI(`scheff.`),
			CI(`no (adjustment|correction) (was |were )?(made |performed |applied )?for (multiple|multiplicity)`),
			CI(`nominal p-values?`), CI(`no formal hypothesis testing`),
		}},
		{Name: CatNormalityChecks, Rules: []PatternRule{
			CI(`\bshapiro-wilk\b`), CI(`\bkolmogorov-smirnov\b`), CI(`\bnormality (test|check)\b`),
			CI(`\bchecked for normality\b`), CI(`\bnormal(ly)? distribut(ed|ion)\b`),
			CI(`\bskewness\b`), CI(`\bkurtosis\b`), CI(`\bq-?q[ -]plot\b`), CI(`\bquantile-quantile\b`),
		}},

		// General statistical methods
		{Name: CatPValues, Rules: []PatternRule{
			CI(`p\s*[=<>≤≥]\s*\d*\.\d+`), CI(`p-value`), CI(`significance level`), CI(`\balpha\b`),
		}},
		{Name: CatConfidenceIntervals, Rules: []PatternRule{
			CI(`95%\s*ci`), CI(`confidence interval`), CI(`95%\s*confidence`),
		}},
		{Name: CatComparativeStats, Rules: []PatternRule{
			CI(`t-test`), CI(`chi-square`), CI(`fisher['’]s exact`), CI(`mann-whitney`),
			CI(`wilcoxon`), CI(`odds ratio`), CI(`relative risk`), CI(`paired t-test`),
		}},
		{Name: CatNonParametric, Rules: []PatternRule{
			CI(`non-parametric`), CI(`permutation test`), CI(`bootstrapping`), CI(`kruskal-wallis`),
			CI(`signed-rank`),
		}},
		{Name: CatAdvancedModeling, Rules: []PatternRule{
			Strict(`GEE`), CI(`generalized estimating equations`), CI(`bayesian`), CI(`propensity score`),
			CI(`sensitivity analysis`), CI(`multiple imputation`), CI(`linear mixed model`),
			CI(`mixed-effects? model`), Strict(`LMM`), Strict(`GLMM`), Strict(`MMRM`),
			CI(`multilevel model`), CI(`hierarchical model`), CI(`repeated measures anova`),
		}},
		{Name: CatModelDetails, Rules: []PatternRule{
			CI(`random (intercept|slope|effect)s?`), CI(`fixed effects?`), CI(`adjusted for`),
			CI(`covariates?`), CI(`link function`), CI(`reference category`),
			CI(`likelihood ratio test`), CI(`goodness-of-fit`), CI(`hosmer-lemeshow`),
			Strict(`AIC`), Strict(`BIC`),
		}},
		{Name: CatAssumptionChecks, Rules: []PatternRule{
			CI(`schoenfeld residuals`), CI(`proportional hazards assumption`), CI(`normality check`),
			CI(`homoscedasticity`), CI(`collinearity`),
		}},
		{Name: CatSurvivalAnalysis, Rules: []PatternRule{
			CI(`kaplan-meier`), CI(`log-rank`), CI(`hazard ratio`), Strict(`HR\s*=`), CI(`median survival`),
		}},
		{Name: CatRegressionAndModels, Rules: []PatternRule{
			CI(`cox proportional`), CI(`logistic regression`), CI(`linear model`), CI(`mixed-effect`),
			CI(`ancova`), CI(`anova`),
		}},
		{Name: CatReportingGuidelines, Rules: []PatternRule{
			Strict(`CONSORT`), Strict(`PRISMA`), CI(`STROBE`), Strict(`ARRIVE`), Strict(`SPIRIT`),
			Strict(`GRDI`), CI(`Guidelines for Research Data Integrity`),
		}},

		// Data properties and dependency
		{Name: CatDataTypes, Rules: []PatternRule{
			CI(`categorical`), CI(`continuous`), CI(`binary`), CI(`ordinal`), CI(`proportions`),
			CI(`frequencies`),
		}},
		{Name: CatDependency, Rules: []PatternRule{
			CI(`paired\s+(data|t-test|analysis|samples|design|measures|subjects)`),
			CI(`matched\s+(pairs|comparison|analysis|controls|case-control)`),
			CI(`repeated measures`), CI(`longitudinal`), CI(`within-subject`),
		}},
		{Name: CatClustering, Rules: []PatternRule{
			CI(`cluster`), CI(`nested`), CI(`hierarchical`), CI(`multilevel`), CI(`unit of analysis`),
			CI(`intra-class correlation`), Strict(`ICC`),
		}},

		// Quality and effect measures
		{Name: CatMissingData, Rules: []PatternRule{
			CI(`missing (values|data)`), CI(`dropout`), CI(`no imputation`), CI(`imputation`),
			CI(`loss to follow-up`), CI(`complete-case`),
		}},
		{Name: CatEffectSize, Rules: []PatternRule{
			CI(`effect size`), CI(`mean difference`), CI(`absolute risk reduction`),
			CI(`number needed to treat`), CI(`standardized mean difference`), CI(`cohen.s d`),
		}},
		{Name: CatPostHoc, Rules: []PatternRule{
			CI(`post-hoc`), CI(`post hoc`), CI(`multiple comparisons`), CI(`tukey`), CI(`scheff.`),
			CI(`sidak`), CI(`\bdunn`), CI(`newman-keuls`),
		}},
		{Name: CatBaselineReporting, Rules: []PatternRule{
			CI(`baseline (characteristic|demographic|profile|data)s?`), CI(`table 1`),
		}},

		// Systematic review and advanced modeling
		{Name: CatAdvancedModelingExtra, Rules: []PatternRule{
			CI(`restricted cubic splines?`), CI(`cubic splines?`), CI(`nonlinear effects`),
			CI(`exclusion criteria`), CI(`were excluded`), CI(`compliance`), CI(`attrition`),
		}},
		{Name: CatSystematicReviewMetrics, Rules: []PatternRule{
			Strict(`SUCRA`), CI(`surface under the cumulative ranking`), CI(`rankogram`),
			CI(`deviance information criterion`), Strict(`DIC`), CI(`node-splitting`),
			CI(`credible intervals?`), Strict(`I2`), CI(`heterogeneity threshold`),
			CI(`threshold for (substantial )?heterogeneity`),
			CI(`(fragmented|disconnected) network`), CI(`network fragmentation`),
		}},
		{Name: CatDiagnosticMetrics, Rules: []PatternRule{
			Strict(`AUC`), Strict(`ROC`), CI(`area under the (receiver operating characteristic )?curve`),
			CI(`receiver operating characteristic`), CI(`sensitivity and specificity`),
			CI(`positive predictive value`), CI(`negative predictive value`), CI(`c-statistic`),
			CI(`youden`),
		}},
		{Name: CatDomainIndicators, Rules: []PatternRule{
			CI(`western blot`), CI(`cell lines?`), CI(`in vitro`), CI(`in vivo`), CI(`knockout mice`),
			CI(`transfect(ed|ion)`), CI(`immunofluorescence`), CI(`confocal microscopy`),
			CI(`flow cytometry`), CI(`crystallograph(y|ic)`), CI(`transcriptomics`), CI(`rna-seq`),
			Strict(`qPCR`), Strict(`CRISPR`), CI(`ImageJ`), CI(`FlowJo`), CI(`PyMOL`), CI(`Seurat`),
			CI(`Bioconductor`),
		}},
	}
}
