package intent

import (
	"context"
	"math"
	"testing"

	"companion/internal/domain"
)

func TestLoadCases(t *testing.T) {
	cases, err := LoadCases()
	if err != nil {
		t.Fatalf("LoadCases: %v", err)
	}
	if len(cases) < 50 {
		t.Fatalf("corpus has %d cases", len(cases))
	}
	langs := map[string]bool{}
	for _, c := range cases {
		langs[c.Language] = true
		if c.Text == "" || c.NSFWLevel < 0 || c.NSFWLevel > 3 {
			t.Fatalf("bad case %+v", c)
		}
	}
	for _, l := range []string{"en", "fr", "es"} {
		if !langs[l] {
			t.Fatalf("language %s missing from corpus", l)
		}
	}
}

func TestRunBenchWithRuleExtractor(t *testing.T) {
	cases, err := LoadCases()
	if err != nil {
		t.Fatalf("LoadCases: %v", err)
	}
	character := &domain.CharacterAttributes{Personality: "friendly, helpful", Age: 25, Ethnicity: "european"}
	rep := RunBench(context.Background(), NewRuleExtractor(), cases, BenchOptions{Character: character})
	if rep.Total != len(cases) || len(rep.Results) != len(cases) {
		t.Fatalf("total = %d, results = %d", rep.Total, len(rep.Results))
	}
	for name, v := range map[string]float64{
		"pass_rate": rep.PassRate, "avg_score": rep.AvgScore, "object_f1": rep.ObjectF1,
		"action": rep.ActionAcc, "location": rep.LocationAcc, "nsfw_exact": rep.NSFWExact,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("%s = %v out of [0,1]", name, v)
		}
	}
	if rep.NSFWWithinOne < 0.95 {
		t.Fatalf("nsfw within one = %.2f", rep.NSFWWithinOne)
	}
	t.Logf("pass rate %.2f, avg %.2f, object F1 %.2f, action %.2f, location %.2f, nsfw exact %.2f",
		rep.PassRate, rep.AvgScore, rep.ObjectF1, rep.ActionAcc, rep.LocationAcc, rep.NSFWExact)
	if rep.Passed != len(rep.Results)-len(rep.Failing()) {
		t.Fatal("Failing() inconsistent with Passed")
	}
}

func TestRunBenchScoresPerfectExtractor(t *testing.T) {
	cases := []Case{{
		ID: 1, Category: "x", Text: "t", Objects: []string{"book"}, Action: "reading",
		Location: "bedroom", NSFWLevel: 1, InPrompt: []string{"book"},
	}}
	perfect := ExtractorFunc(func(context.Context, string, *domain.CharacterAttributes) domain.RequestIntent {
		return domain.RequestIntent{Objects: []string{"book"}, Action: "reading", Location: "bedroom", NSFWLevel: 1}
	})
	rep := RunBench(context.Background(), perfect, cases, BenchOptions{
		Compose: func(in domain.RequestIntent) (string, error) { return "reading a book", nil },
	})
	if rep.Passed != 1 || rep.AvgScore != 1 || !rep.Accepted {
		t.Fatalf("report = %+v", rep)
	}
}

func TestObjectF1AndActionMatch(t *testing.T) {
	if got := objectF1([]string{"lollipop", "candy"}, []string{"lollipop"}); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("objectF1 = %v", got)
	}
	if objectF1([]string{"book"}, nil) != 0 {
		t.Fatal("no extraction should score 0")
	}
	if !actionMatches("lying down", "lying") || !actionMatches("taking selfie", "taking selfie") {
		t.Fatal("expected action match")
	}
	if actionMatches("dancing", "") || actionMatches("dancing", "reading") {
		t.Fatal("unexpected action match")
	}
}
