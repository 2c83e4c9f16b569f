// Package validator scores composed prompts against a fixed rule set. Reports
// are advisory; the validator never blocks generation.
package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"companion/internal/domain"
	"companion/internal/vocab"
)

const (
	ThresholdProduction = 9.0
	ThresholdLenient    = 7.0

	passScore = 8.0
)

// Weights per criterion. Composite = sum(weight*score) / sum(weight).
var Weights = map[string]float64{
	domain.CriterionDiversityMarkers: 1.5,
	domain.CriterionImperfections:    1.5,
	domain.CriterionLighting:         1.0,
	domain.CriterionContradictions:   1.5,
	domain.CriterionPerfectionTerms:  1.0,
	domain.CriterionAnatomy:          1.5,
	domain.CriterionLength:           1.0,
	domain.CriterionQuality:          0.5,
	domain.CriterionNegativeCoverage: 0.5,
}

// Config sets the pass threshold and the accepted word window.
type Config struct {
	Threshold float64
	MinWords  int
	MaxWords  int
}

// ThresholdForMode maps "production" and "lenient" to their thresholds.
// Unknown modes fall back to production.
func ThresholdForMode(mode string) float64 {
	if strings.EqualFold(strings.TrimSpace(mode), "lenient") {
		return ThresholdLenient
	}
	return ThresholdProduction
}

// Validator is stateless and safe for concurrent use.
type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = ThresholdProduction
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 85
	}
	if cfg.MaxWords < cfg.MinWords {
		cfg.MaxWords = cfg.MinWords + 10
	}
	return &Validator{cfg: cfg}
}

// Threshold returns the configured pass threshold.
func (v *Validator) Threshold() float64 {
	return v.cfg.Threshold
}

var (
	ageRe = regexp.MustCompile(`\b((early|mid|late)[ -]?\d0s|in (her|his|their) \d0s|(1[89]|[2-9]\d)[ -]years?[ -]old)\b`)

	extraEthnicityRe = regexp.MustCompile(`\b(asian|african|european|latina|latino|hispanic|caucasian|indian|arab|middle-eastern|mixed race|scandinavian|slavic|japanese|korean|chinese|brazilian|mexican)\b`)

	imperfectionRe = regexp.MustCompile(`\b(pores|freckles|blemish(es)?|texture|under-eye|beauty mark|scars?|redness|imperfections|wrinkles|moles?|stretch marks|flyaway)\b`)

	lightSourceRe    = regexp.MustCompile(`\b(light|lighting|sunlight|daylight|lamp|glow|candlelight|neon)\b`)
	lightDirectionRe = regexp.MustCompile(`(from the (left|right|front|side|back)|from (a|the) window|through (a|the) window|\bside-lit\b|\bbacklit\b|\boverhead\b|from above|from behind)`)

	perfectionRe = regexp.MustCompile(`\b(flawless|perfect|airbrushed|idealized|retouched|model-like|photoshopped)\b`)

	bodyPartRe = regexp.MustCompile(`\b(face|hands?|fingers|body|legs|arms|breasts|chest|eyes|lips)\b`)
	anatomyRe  = regexp.MustCompile(`(five fingers|5 fingers|\bsymmetric\b|\bproportional\b|anatomically correct|correct anatomy)`)

	qualityRe  = regexp.MustCompile(`\b(sharp|crisp|clear|detailed|high resolution|hd|4k|8k)\b`)
	degraderRe = regexp.MustCompile(`\b(blurry|noisy|grainy|pixelated|low resolution|distorted)\b`)
)

type contradiction struct {
	name string
	a, b *regexp.Regexp
}

var contradictions = []contradiction{
	{"professional vs amateur/candid", regexp.MustCompile(`\bprofessional\b`), regexp.MustCompile(`\b(amateur|candid|snapshot)\b`)},
	{"studio vs candid", regexp.MustCompile(`\bstudio\b`), regexp.MustCompile(`\b(candid|amateur)\b`)},
	{"perfect vs imperfect", regexp.MustCompile(`\bperfect\b`), regexp.MustCompile(`\bimperfect(ions)?\b`)},
	{"polished vs raw", regexp.MustCompile(`\bpolished\b`), regexp.MustCompile(`\b(raw|unedited)\b`)},
}

var negativeGroups = []struct {
	name string
	re   *regexp.Regexp
}{
	{"anti-retouch", regexp.MustCompile(`\b(airbrushed|photoshopped|perfect skin|retouched)\b`)},
	{"anti-stylization", regexp.MustCompile(`\b(cartoon|anime|illustration|cgi|3d render)\b`)},
	{"anti-defect", regexp.MustCompile(`\b(extra fingers|deformed|blurry|distorted)\b`)},
}

// Validate scores a bundle. It is a pure function of the bundle and config.
func (v *Validator) Validate(b domain.PromptBundle) domain.ValidationReport {
	pos := strings.ToLower(b.PositivePrompt)
	neg := strings.ToLower(b.NegativePrompt)

	criteria := map[string]domain.CriterionResult{
		domain.CriterionDiversityMarkers: diversityMarkers(pos),
		domain.CriterionImperfections:    imperfections(pos),
		domain.CriterionLighting:         lighting(pos),
		domain.CriterionContradictions:   contradictionCheck(pos),
		domain.CriterionPerfectionTerms:  perfectionTerms(pos),
		domain.CriterionAnatomy:          anatomy(pos),
		domain.CriterionLength:           v.length(b.PositivePrompt),
		domain.CriterionQuality:          quality(pos),
		domain.CriterionNegativeCoverage: negativeCoverage(neg),
	}

	var sum, weights float64
	for _, name := range domain.CriteriaOrder {
		c := criteria[name]
		c.Weight = Weights[name]
		criteria[name] = c
		sum += c.Weight * c.Score
		weights += c.Weight
	}
	composite := math.Round(sum/weights*100) / 100
	return domain.ValidationReport{
		CompositeScore: composite,
		Threshold:      v.cfg.Threshold,
		Passed:         composite >= v.cfg.Threshold,
		Criteria:       criteria,
	}
}

func result(score float64, detail string) domain.CriterionResult {
	score = math.Max(0, math.Min(10, score))
	return domain.CriterionResult{Score: score, Passed: score >= passScore, Detail: detail}
}

func diversityMarkers(p string) domain.CriterionResult {
	eth := extraEthnicityRe.MatchString(p)
	if !eth {
		for _, e := range vocab.Values(vocab.Ethnicity) {
			if strings.Contains(p, strings.ToLower(e)) {
				eth = true
				break
			}
		}
	}
	age := ageRe.MatchString(p)
	switch {
	case eth && age:
		return result(10, "ethnicity and age present")
	case eth:
		return result(5, "age marker missing")
	case age:
		return result(5, "ethnicity marker missing")
	default:
		return result(0, "no ethnicity or age markers")
	}
}

func imperfections(p string) domain.CriterionResult {
	found := distinct(imperfectionRe.FindAllString(p, -1))
	switch {
	case len(found) >= 2:
		return result(10, fmt.Sprintf("%d imperfection markers", len(found)))
	case len(found) == 1:
		return result(7, "only one imperfection marker: "+found[0])
	default:
		return result(0, "no natural imperfection markers")
	}
}

func lighting(p string) domain.CriterionResult {
	src := lightSourceRe.MatchString(p)
	dir := lightDirectionRe.MatchString(p)
	switch {
	case src && dir:
		return result(10, "light source and direction present")
	case src:
		return result(6, "light direction missing")
	default:
		return result(0, "no lighting specified")
	}
}

func contradictionCheck(p string) domain.CriterionResult {
	var hits []string
	for _, c := range contradictions {
		if c.a.MatchString(p) && c.b.MatchString(p) {
			hits = append(hits, c.name)
		}
	}
	if len(hits) == 0 {
		return result(10, "no contradictory terms")
	}
	r := result(10-5*float64(len(hits)), "contradictory terms: "+strings.Join(hits, "; "))
	r.Passed = false
	return r
}

func perfectionTerms(p string) domain.CriterionResult {
	found := distinct(perfectionRe.FindAllString(p, -1))
	if len(found) == 0 {
		return result(10, "no perfection-coded terms")
	}
	r := result(10-4*float64(len(found)), "perfection-coded terms: "+strings.Join(found, ", "))
	r.Passed = false
	return r
}

func anatomy(p string) domain.CriterionResult {
	if !bodyPartRe.MatchString(p) {
		return result(10, "no body parts depicted")
	}
	if anatomyRe.MatchString(p) {
		return result(10, "anatomical correctness markers present")
	}
	return result(3, "body parts depicted without anatomy markers")
}

func (v *Validator) length(prompt string) domain.CriterionResult {
	n := vocab.WordCount(prompt)
	switch {
	case n < v.cfg.MinWords:
		r := result(10-float64(v.cfg.MinWords-n)/2, fmt.Sprintf("%d words, below %d", n, v.cfg.MinWords))
		r.Passed = false
		return r
	case n > v.cfg.MaxWords:
		r := result(10-float64(n-v.cfg.MaxWords)/2, fmt.Sprintf("%d words, above %d", n, v.cfg.MaxWords))
		r.Passed = false
		return r
	default:
		return result(10, fmt.Sprintf("%d words", n))
	}
}

func quality(p string) domain.CriterionResult {
	score := 10.0
	var notes []string
	if !qualityRe.MatchString(p) {
		score = 4
		notes = append(notes, "no quality enhancers")
	}
	if bad := distinct(degraderRe.FindAllString(p, -1)); len(bad) > 0 {
		score -= 3 * float64(len(bad))
		notes = append(notes, "quality degraders: "+strings.Join(bad, ", "))
	}
	if len(notes) == 0 {
		return result(score, "quality enhancers present")
	}
	return result(score, strings.Join(notes, "; "))
}

func negativeCoverage(n string) domain.CriterionResult {
	var missing []string
	for _, g := range negativeGroups {
		if !g.re.MatchString(n) {
			missing = append(missing, g.name)
		}
	}
	covered := len(negativeGroups) - len(missing)
	score := 10 * float64(covered) / float64(len(negativeGroups))
	if len(missing) == 0 {
		return result(score, "negative prompt covers retouch, stylization and defects")
	}
	return result(score, "negative prompt missing: "+strings.Join(missing, ", "))
}

func distinct(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
