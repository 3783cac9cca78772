package rigor_engine

import (
	"strings"

	fx "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

var (
	clinicalKeywords = []string{
		"clinical trial", "randomized", "randomised", "patient", "participant",
		"phase 1", "phase 2", "phase 3", "human",
	}
	basicScienceKeywords = []string{
		"crystallography", "transcriptomics", "blot", "staining", "mice", "cell line",
		"seurat", "imagej", "flowjo", "pymol", "bioconductor", "in vitro", "in vivo",
		"knockout", "fluorescence", "quantification", "western", "microscopy",
	}
	nonResearchKeywords = []string{
		"review", "meta-analysis", "guideline", "consensus", "policy", "perspective",
		"commentary", "editorial", "retraction", "retracted", "framework", "overview",
		"statement", "consort", "expression of concern", "erratum", "correction",
		"corrigendum",
	}
	observationalKeywords = []string{
		"cohort", "retrospective", "case-control", "cross-sectional", "registry",
		"observational", "survey", "scale", "questionnaire", "qualitative", "interview",
	}
	randomizationKeywords = []string{
		"randomized", "randomised", "randomization", "randomisation", "randomly", "rct",
	}
)

// Context strength messages.
const (
	msgClinicalContext      = "Analysis context identifies clinical research (Clinical trial requirements apply)."
	msgBasicScienceContext  = "Analysis context identifies basic science or bioinformatics (Softened clinical trial requirements)."
	msgNonResearchContext   = "Article appears to be Non-Primary Research (Review/Guideline etc.). Statistical gaps suppressed."
	msgObservationalContext = "Study design appears Observational (relaxed Blinding/Randomization checks)."
)

// StudyContext is the classification that gates the rule chain. Each
// Trigger field records the term that fired the matching flag.
type StudyContext struct {
	IsClinical      bool `json:"is_clinical"`
	IsBasicScience  bool `json:"is_basic_science"`
	IsNonResearch   bool `json:"is_non_research"`
	IsObservational bool `json:"is_observational"`

	ClinicalTrigger      string `json:"clinical_trigger,omitempty"`
	BasicScienceTrigger  string `json:"basic_science_trigger,omitempty"`
	NonResearchTrigger   string `json:"non_research_trigger,omitempty"`
	ObservationalTrigger string `json:"observational_trigger,omitempty"`
}

// ClassifyContext derives the study context from the pooled unique matches
// of every category plus the title. Non-research detection reads the title
// only.
func ClassifyContext(features audit.FeatureMap, title string) StudyContext {
	pooled := pooledText(features, title)
	var sc StudyContext

	if kw, ok := firstContained(pooled, clinicalKeywords); ok {
		sc.IsClinical = true
		sc.ClinicalTrigger = kw
	}

	if !sc.IsClinical {
		if indicators := features.Get(fx.CatDomainIndicators).UniqueMatches; len(indicators) > 0 {
			sc.IsBasicScience = true
			sc.BasicScienceTrigger = indicators[0]
		} else if kw, ok := firstContained(pooled, basicScienceKeywords); ok {
			sc.IsBasicScience = true
			sc.BasicScienceTrigger = kw
		}
	}

	if kw, ok := firstContained(strings.ToLower(title), nonResearchKeywords); ok {
		sc.IsNonResearch = true
		sc.NonResearchTrigger = kw
	}

	if kw, ok := firstContained(pooled, observationalKeywords); ok {
		if _, randomized := firstContained(pooled, randomizationKeywords); !randomized {
			sc.IsObservational = true
			sc.ObservationalTrigger = kw
		}
	}
	return sc
}

// strengths returns the contextual findings, one per classification that
// fired. They are never gaps.
func (sc StudyContext) strengths() []audit.Finding {
	var out []audit.Finding
	switch {
	case sc.IsClinical:
		out = append(out, audit.Finding{Message: msgClinicalContext, Evidence: "Detected term: '" + sc.ClinicalTrigger + "'"})
	case sc.IsBasicScience:
		out = append(out, audit.Finding{Message: msgBasicScienceContext, Evidence: "Detected term: '" + sc.BasicScienceTrigger + "'"})
	}
	if sc.IsNonResearch {
		out = append(out, audit.Finding{Message: msgNonResearchContext, Evidence: "Detected term in title."})
	}
	if sc.IsObservational && !sc.IsBasicScience && !sc.IsNonResearch {
		out = append(out, audit.Finding{Message: msgObservationalContext, Evidence: "Detected observational terms."})
	}
	return out
}

func pooledText(features audit.FeatureMap, title string) string {
	var parts []string
	for _, cat := range features.Categories() {
		parts = append(parts, features.Get(cat).UniqueMatches...)
	}
	if title != "" {
		parts = append(parts, title)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func firstContained(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
