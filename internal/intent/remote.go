package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"companion/internal/domain"
)

const (
	defaultRemoteModel   = "gpt-4o-mini"
	defaultRemoteTimeout = 15 * time.Second
	maxRemoteObjects     = 6
)

// RemoteOptions configures RemoteExtractor.
type RemoteOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Fallback answers when the model call or its payload fails. Defaults to
	// a RuleExtractor.
	Fallback   Extractor
	OnFallback func(reason string, err error)
	// RequestOptions are appended to the client options, mainly for tests.
	RequestOptions []option.RequestOption
}

// RemoteExtractor asks an OpenAI-compatible chat model for the intent. The
// rule engine result is the baseline; model fields override it one by one
// when present and valid.
type RemoteExtractor struct {
	client     openai.Client
	model      string
	timeout    time.Duration
	rules      *RuleExtractor
	fallback   Extractor
	onFallback func(reason string, err error)
}

func NewRemoteExtractor(opts RemoteOptions) (*RemoteExtractor, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("intent: remote api key is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	reqOpts = append(reqOpts, opts.RequestOptions...)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	rules := NewRuleExtractor()
	fallback := opts.Fallback
	if fallback == nil {
		fallback = rules
	}
	return &RemoteExtractor{
		client:     openai.NewClient(reqOpts...),
		model:      coalesce(opts.Model, defaultRemoteModel),
		timeout:    timeout,
		rules:      rules,
		fallback:   fallback,
		onFallback: opts.OnFallback,
	}, nil
}

type modelIntentPayload struct {
	Objects      []string `json:"objects"`
	Action       string   `json:"action"`
	Location     string   `json:"location"`
	PoseHint     string   `json:"pose_hint"`
	ClothingHint string   `json:"clothing_hint"`
	Mood         string   `json:"mood"`
	NSFWLevel    *int     `json:"nsfw_level"`
	Minor        bool     `json:"minor"`
}

const remoteSystemPrompt = "You extract structured attributes from image requests written in English, French or Spanish. Respond only with valid JSON."

func buildIntentPrompt(raw string) string {
	sb := &strings.Builder{}
	sb.WriteString("Extract the request attributes as JSON matching this schema: ")
	sb.WriteString(`{"objects":string[],"action":string,"location":string,"pose_hint":string,"clothing_hint":string,"mood":"neutral"|"seductive"|"playful"|"shy"|"confident"|"romantic","nsfw_level":0|1|2|3,"minor":boolean}`)
	sb.WriteString(". Translate values to short English phrases. Objects are physical props, never clothing. ")
	sb.WriteString("nsfw_level: 0 casual clothing, 1 lingerie or swimwear or suggestive, 2 topless, 3 fully nude. ")
	sb.WriteString("Set minor to true if the request refers to anyone under 18. ")
	fmt.Fprintf(sb, "Request: %q", raw)
	return sb.String()
}

// Extract implements Extractor.
func (r *RemoteExtractor) Extract(ctx context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent {
	in, _ := r.ExtractStatus(ctx, raw, attrs)
	return in
}

// ExtractStatus implements DegradableExtractor. degraded is true when the
// fallback extractor answered.
func (r *RemoteExtractor) ExtractStatus(ctx context.Context, raw string, attrs *domain.CharacterAttributes) (domain.RequestIntent, bool) {
	if strings.TrimSpace(raw) == "" {
		return r.rules.Extract(ctx, raw, attrs), false
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text := strings.ToValidUTF8(raw, " ")
	if len([]rune(text)) > MaxInputRunes {
		text = string([]rune(text)[:MaxInputRunes])
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.Opt[string]{Value: remoteSystemPrompt},
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.Opt[string]{Value: buildIntentPrompt(text)},
					},
				},
			},
		},
		MaxCompletionTokens: openai.Int(400),
		Temperature:         openai.Float(0),
	}
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return r.useFallback(ctx, raw, attrs, "chat_completion", err)
	}
	if len(resp.Choices) == 0 {
		return r.useFallback(ctx, raw, attrs, "empty_choices", errors.New("no choices"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return r.useFallback(ctx, raw, attrs, "empty_response", errors.New("empty response"))
	}
	parsed, err := parseModelPayload[modelIntentPayload](content)
	if err != nil {
		return r.useFallback(ctx, raw, attrs, "parse_payload", err)
	}
	return merge(r.rules.Extract(ctx, raw, attrs), parsed, attrs), false
}

// merge overlays valid model fields on the rule baseline. A model can add a
// block but never lift one.
func merge(base domain.RequestIntent, p modelIntentPayload, attrs *domain.CharacterAttributes) domain.RequestIntent {
	out := base
	if objs := cleanPhrases(p.Objects, maxRemoteObjects); len(objs) > 0 {
		out.Objects = objs
	}
	out.Action = coalesce(p.Action, base.Action)
	out.Location = coalesce(p.Location, base.Location)
	out.PoseHint = coalesce(p.PoseHint, base.PoseHint)
	out.ClothingHint = coalesce(p.ClothingHint, base.ClothingHint)
	if m := domain.NormalizeMood(p.Mood); m != domain.MoodNeutral {
		out.Mood = m
	}
	if p.NSFWLevel != nil && domain.NSFWLevel(*p.NSFWLevel).Valid() {
		out.NSFWLevel = domain.NSFWLevel(*p.NSFWLevel)
	}
	if p.Minor && !out.Blocked {
		out.Blocked = true
		out.BlockReason = "request references a minor"
	}
	return ApplyOutfitPrecedence(out, attrs)
}

func (r *RemoteExtractor) useFallback(ctx context.Context, raw string, attrs *domain.CharacterAttributes, reason string, err error) (domain.RequestIntent, bool) {
	if r.onFallback != nil {
		r.onFallback(reason, err)
	}
	// The fallback must still answer after the model call timed out.
	return r.fallback.Extract(context.WithoutCancel(ctx), raw, attrs), true
}
