package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"companion/internal/composer"
	"companion/internal/domain"
	"companion/internal/infra"
	"companion/internal/intent"
)

func main() {
	var (
		providerFlag string
		composeFlag  bool
		jsonFlag     bool
		verboseFlag  bool
		categoryFlag string
	)

	flag.StringVar(&providerFlag, "provider", "", "intent provider to measure (rules or openai; defaults to INTENT_PROVIDER)")
	flag.BoolVar(&composeFlag, "compose", true, "compose a prompt per case and check the expected keywords")
	flag.BoolVar(&jsonFlag, "json", false, "print the full report as JSON")
	flag.BoolVar(&verboseFlag, "v", false, "list failing cases")
	flag.StringVar(&categoryFlag, "category", "", "only run cases of this category")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if provider == "" {
		provider = cfg.IntentProvider
	}

	var ex intent.Extractor
	switch provider {
	case infra.IntentProviderRules:
		ex = intent.NewRuleExtractor()
	case infra.IntentProviderOpenAI:
		remote, err := intent.NewRemoteExtractor(intent.RemoteOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.IntentTimeout,
			OnFallback: func(reason string, err error) {
				logger.Warn().Err(err).Str("reason", reason).Msg("intent: fallback")
			},
		})
		if err != nil {
			exitWithError(err)
		}
		ex = remote
	default:
		exitWithError(fmt.Errorf("unsupported provider %q", provider))
	}

	cases, err := intent.LoadCases()
	if err != nil {
		exitWithError(err)
	}
	if categoryFlag != "" {
		filtered := cases[:0]
		for _, c := range cases {
			if strings.EqualFold(c.Category, categoryFlag) {
				filtered = append(filtered, c)
			}
		}
		cases = filtered
	}
	if len(cases) == 0 {
		exitWithError(fmt.Errorf("no cases for category %q", categoryFlag))
	}

	var opts intent.BenchOptions
	if composeFlag {
		comp := composer.New(composer.Config{MinWords: cfg.PromptMinWords, MaxWords: cfg.PromptMaxWords})
		opts.Compose = func(in domain.RequestIntent) (string, error) {
			b, err := comp.Compose(in, nil)
			return b.PositivePrompt, err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(cases))*cfg.IntentTimeout)
	defer cancel()

	start := time.Now()
	rep := intent.RunBench(ctx, ex, cases, opts)

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			exitWithError(err)
		}
	} else {
		printReport(rep, provider, time.Since(start), verboseFlag)
	}
	if !rep.Accepted {
		os.Exit(1)
	}
}

func printReport(rep intent.Report, provider string, took time.Duration, verbose bool) {
	fmt.Printf("provider:           %s (%d cases in %s)\n", provider, rep.Total, took.Round(time.Millisecond))
	fmt.Printf("pass rate:          %.1f%% (%d/%d)\n", rep.PassRate*100, rep.Passed, rep.Total)
	fmt.Printf("average score:      %.2f\n", rep.AvgScore)
	fmt.Printf("object F1:          %.2f\n", rep.ObjectF1)
	fmt.Printf("action accuracy:    %.1f%%\n", rep.ActionAcc*100)
	fmt.Printf("location accuracy:  %.1f%%\n", rep.LocationAcc*100)
	fmt.Printf("nsfw exact / ±1:    %.1f%% / %.1f%%\n", rep.NSFWExact*100, rep.NSFWWithinOne*100)

	categories := make([]string, 0, len(rep.ByCategory))
	for c := range rep.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Printf("  %-16s  %.1f%%\n", c, rep.ByCategory[c]*100)
	}

	if verbose {
		for _, res := range rep.Failing() {
			fmt.Printf("\n#%d [%s/%s] %q score=%.2f\n", res.Case.ID, res.Case.Category, res.Case.Language, res.Case.Text, res.Score)
			for _, f := range res.Failures {
				fmt.Printf("  - %s\n", f)
			}
		}
	}

	verdict := "REJECTED"
	if rep.Accepted {
		verdict = "ACCEPTED"
	}
	fmt.Printf("\n%s (needs pass rate >= %.0f%% and average >= %.2f)\n", verdict, intent.AcceptPassRate*100, intent.AcceptAvgScore)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "intentbench: %v\n", err)
	os.Exit(1)
}
