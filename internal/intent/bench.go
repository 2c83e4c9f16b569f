package intent

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"companion/internal/domain"
)

//go:embed cases.json
var casesJSON []byte

const (
	// A case passes at this score with no hard failures.
	CasePassScore = 0.70
	// The corpus is accepted when both hold.
	AcceptPassRate = 0.85
	AcceptAvgScore = 0.70
)

// Case is one labelled request from the multilingual corpus.
type Case struct {
	ID        int      `json:"id"`
	Category  string   `json:"category"`
	Language  string   `json:"language"`
	Text      string   `json:"text"`
	Objects   []string `json:"objects"`
	Action    string   `json:"action"`
	Location  string   `json:"location"`
	NSFWLevel int      `json:"nsfw_level"`
	InPrompt  []string `json:"in_prompt"`
}

// LoadCases returns the embedded corpus.
func LoadCases() ([]Case, error) {
	var cases []Case
	if err := json.Unmarshal(casesJSON, &cases); err != nil {
		return nil, fmt.Errorf("intent: decode cases: %w", err)
	}
	return cases, nil
}

// BenchOptions configures RunBench.
type BenchOptions struct {
	// Character is passed to every extraction.
	Character *domain.CharacterAttributes
	// Compose, when set, renders the intent to a prompt so the expected
	// keywords can be checked.
	Compose func(domain.RequestIntent) (string, error)
}

// CaseResult is the scored outcome of one case.
type CaseResult struct {
	Case       Case                 `json:"case"`
	Got        domain.RequestIntent `json:"got"`
	ObjectF1   float64              `json:"object_f1"`
	ActionOK   bool                 `json:"action_ok"`
	LocationOK bool                 `json:"location_ok"`
	NSFWDiff   int                  `json:"nsfw_diff"`
	Keywords   float64              `json:"keywords"`
	Score      float64              `json:"score"`
	Passed     bool                 `json:"passed"`
	Failures   []string             `json:"failures,omitempty"`
}

// Report aggregates a bench run.
type Report struct {
	Results       []CaseResult       `json:"results"`
	Total         int                `json:"total"`
	Passed        int                `json:"passed"`
	PassRate      float64            `json:"pass_rate"`
	AvgScore      float64            `json:"avg_score"`
	ObjectF1      float64            `json:"object_f1"`
	ActionAcc     float64            `json:"action_accuracy"`
	LocationAcc   float64            `json:"location_accuracy"`
	NSFWExact     float64            `json:"nsfw_exact"`
	NSFWWithinOne float64            `json:"nsfw_within_one"`
	ByCategory    map[string]float64 `json:"pass_rate_by_category"`
	Accepted      bool               `json:"accepted"`
}

// RunBench extracts every case and scores it the way the original acceptance
// suite did: object F1 with substring matching, action word overlap,
// location substring, NSFW distance at 0.5 per level and prompt keywords.
func RunBench(ctx context.Context, ex Extractor, cases []Case, opts BenchOptions) Report {
	rep := Report{Total: len(cases), ByCategory: map[string]float64{}}
	catTotal := map[string]int{}
	catPassed := map[string]int{}
	var objSum, objN, actOK, actN, locOK, locN, exact, within, scoreSum float64

	for _, c := range cases {
		got := ex.Extract(ctx, c.Text, opts.Character)
		res := CaseResult{Case: c, Got: got}
		var scores []float64

		if len(c.Objects) > 0 {
			res.ObjectF1 = objectF1(c.Objects, got.Objects)
			scores = append(scores, res.ObjectF1)
			objSum += res.ObjectF1
			objN++
			if res.ObjectF1 < 0.5 {
				res.Failures = append(res.Failures, fmt.Sprintf("object F1 %.2f (want %v, got %v)", res.ObjectF1, c.Objects, got.Objects))
			}
		}
		if c.Action != "" {
			res.ActionOK = actionMatches(c.Action, got.Action)
			scores = append(scores, boolScore(res.ActionOK))
			actN++
			if res.ActionOK {
				actOK++
			} else {
				res.Failures = append(res.Failures, fmt.Sprintf("action: want %q, got %q", c.Action, got.Action))
			}
		}
		if c.Location != "" {
			res.LocationOK = got.Location != "" && (strings.Contains(got.Location, c.Location) || strings.Contains(c.Location, got.Location))
			scores = append(scores, boolScore(res.LocationOK))
			locN++
			if res.LocationOK {
				locOK++
			} else {
				res.Failures = append(res.Failures, fmt.Sprintf("location: want %q, got %q", c.Location, got.Location))
			}
		}

		res.NSFWDiff = int(math.Abs(float64(int(got.NSFWLevel) - c.NSFWLevel)))
		scores = append(scores, math.Max(0, 1-0.5*float64(res.NSFWDiff)))
		if res.NSFWDiff == 0 {
			exact++
		}
		if res.NSFWDiff <= 1 {
			within++
		} else {
			res.Failures = append(res.Failures, fmt.Sprintf("nsfw: want %d, got %d", c.NSFWLevel, got.NSFWLevel))
		}

		if opts.Compose != nil && len(c.InPrompt) > 0 {
			prompt, err := opts.Compose(got)
			if err != nil {
				res.Failures = append(res.Failures, "compose: "+err.Error())
			}
			res.Keywords = keywordCoverage(c.InPrompt, prompt)
			scores = append(scores, res.Keywords)
			if res.Keywords < 0.5 {
				res.Failures = append(res.Failures, fmt.Sprintf("prompt keywords %.2f", res.Keywords))
			}
		}

		for _, s := range scores {
			res.Score += s
		}
		res.Score /= float64(len(scores))
		res.Passed = res.Score >= CasePassScore && len(res.Failures) == 0

		scoreSum += res.Score
		catTotal[c.Category]++
		if res.Passed {
			rep.Passed++
			catPassed[c.Category]++
		}
		rep.Results = append(rep.Results, res)
	}

	if rep.Total == 0 {
		return rep
	}
	n := float64(rep.Total)
	rep.PassRate = float64(rep.Passed) / n
	rep.AvgScore = scoreSum / n
	rep.ObjectF1 = ratio(objSum, objN)
	rep.ActionAcc = ratio(actOK, actN)
	rep.LocationAcc = ratio(locOK, locN)
	rep.NSFWExact = exact / n
	rep.NSFWWithinOne = within / n
	for cat, total := range catTotal {
		rep.ByCategory[cat] = float64(catPassed[cat]) / float64(total)
	}
	rep.Accepted = rep.PassRate >= AcceptPassRate && rep.AvgScore >= AcceptAvgScore
	return rep
}

// Failing returns the results that did not pass, ordered by score.
func (r Report) Failing() []CaseResult {
	var out []CaseResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

func objectF1(want, got []string) float64 {
	if len(got) == 0 {
		return 0
	}
	tp := 0
	for _, g := range got {
		g = strings.ToLower(g)
		for _, w := range want {
			w = strings.ToLower(w)
			if strings.Contains(g, w) || strings.Contains(w, g) {
				tp++
				break
			}
		}
	}
	precision := float64(tp) / float64(len(got))
	recall := math.Min(1, float64(tp)/float64(len(want)))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func actionMatches(want, got string) bool {
	want, got = strings.ToLower(want), strings.ToLower(got)
	if got == "" {
		return false
	}
	if strings.Contains(got, want) || strings.Contains(want, got) {
		return true
	}
	for _, w := range strings.Fields(want) {
		if strings.Contains(got, w) {
			return true
		}
	}
	return false
}

func keywordCoverage(keywords []string, prompt string) float64 {
	prompt = strings.ToLower(prompt)
	found := 0
	for _, kw := range keywords {
		if strings.Contains(prompt, strings.ToLower(kw)) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
