package domain

// PromptBundle is the immutable output of one composition.
type PromptBundle struct {
	PositivePrompt string    `json:"positive_prompt"`
	NegativePrompt string    `json:"negative_prompt"`
	NSFWLevel      NSFWLevel `json:"nsfw_level"`
	Fingerprint    string    `json:"fingerprint"`
}

// CriterionResult is the outcome of one validator check.
type CriterionResult struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Passed bool    `json:"passed"`
	Detail string  `json:"detail"`
}

// ValidationReport is advisory: callers decide whether to regenerate, proceed
// or abort.
type ValidationReport struct {
	CompositeScore float64                    `json:"composite_score"`
	Threshold      float64                    `json:"threshold"`
	Passed         bool                       `json:"passed"`
	Criteria       map[string]CriterionResult `json:"criteria"`
}

// Failed lists the names of criteria that did not pass.
func (r ValidationReport) Failed() []string {
	var out []string
	for _, name := range CriteriaOrder {
		if c, ok := r.Criteria[name]; ok && !c.Passed {
			out = append(out, name)
		}
	}
	return out
}

// Criterion names, in report order.
const (
	CriterionDiversityMarkers = "diversity_markers"
	CriterionImperfections    = "imperfections"
	CriterionLighting         = "lighting"
	CriterionContradictions   = "contradictions"
	CriterionPerfectionTerms  = "perfection_terms"
	CriterionAnatomy          = "anatomy"
	CriterionLength           = "length"
	CriterionQuality          = "quality_enhancers"
	CriterionNegativeCoverage = "negative_coverage"
)

var CriteriaOrder = []string{
	CriterionDiversityMarkers,
	CriterionImperfections,
	CriterionLighting,
	CriterionContradictions,
	CriterionPerfectionTerms,
	CriterionAnatomy,
	CriterionLength,
	CriterionQuality,
	CriterionNegativeCoverage,
}
