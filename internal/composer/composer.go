// Package composer assembles positive and negative image prompts from a
// RequestIntent, the vocabulary pools and the diversity history.
package composer

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"companion/internal/diversity"
	"companion/internal/domain"
	"companion/internal/vocab"
)

const (
	DefaultMinWords   = 85
	DefaultMaxWords   = 95
	DefaultCandidates = 8
)

// Config bounds the positive prompt length and sets how many identity
// combinations are weighed per composition.
type Config struct {
	MinWords   int
	MaxWords   int
	Candidates int
}

// DefaultConfig returns the production word window (85-95 words).
func DefaultConfig() Config {
	return Config{MinWords: DefaultMinWords, MaxWords: DefaultMaxWords, Candidates: DefaultCandidates}
}

func (c Config) withDefaults() Config {
	if c.MinWords <= 0 {
		c.MinWords = DefaultMinWords
	}
	if c.MaxWords <= 0 {
		c.MaxWords = DefaultMaxWords
	}
	if c.MaxWords < c.MinWords {
		c.MaxWords = c.MinWords
	}
	if c.Candidates <= 0 {
		c.Candidates = DefaultCandidates
	}
	return c
}

// Option customizes a Composer.
type Option func(*Composer)

// WithRand injects the random source, mainly for reproducible tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Composer) {
		if r != nil {
			c.rng = r
		}
	}
}

// Composer is safe for concurrent use.
type Composer struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a composer.
func New(cfg Config, opts ...Option) *Composer {
	seed := uint64(time.Now().UnixNano())
	c := &Composer{
		cfg: cfg.withDefaults(),
		rng: rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Composer) Config() Config {
	return c.cfg
}

var moodExpressions = map[domain.Mood]string{
	domain.MoodSeductive: "sultry gaze",
	domain.MoodPlayful:   "playful grin",
	domain.MoodShy:       "shy smile",
	domain.MoodConfident: "confident look",
	domain.MoodRomantic:  "soft loving gaze",
}

// Essential tail tags survive trimming.
var essentialTags = map[string]bool{
	"sharp focus":    true,
	"photorealistic": true,
}

type identity struct {
	ethnicity string
	ageBand   string
	faceShape string
	location  string
}

func (id identity) fingerprint() string {
	return diversity.Fingerprint(id.ethnicity, id.ageBand, id.faceShape, id.location)
}

// Compose builds a PromptBundle and records its fingerprint in history.
// history may be nil. It fails only when the intent breaks its contract: an
// NSFW level outside 0..3 or a blocked intent.
func (c *Composer) Compose(intent domain.RequestIntent, history *diversity.Tracker) (domain.PromptBundle, error) {
	if !intent.NSFWLevel.Valid() {
		return domain.PromptBundle{}, fmt.Errorf("%w: nsfw_level %d outside 0..3", domain.ErrInvalidIntent, int(intent.NSFWLevel))
	}
	if intent.Blocked {
		return domain.PromptBundle{}, fmt.Errorf("%w: %s", domain.ErrContentRejected, intent.BlockReason)
	}

	c.mu.Lock()
	id := c.pickIdentity(intent, history)
	app := intent.Appearance
	imperfection := strings.TrimSpace(app.Imperfection)
	if imperfection == "" {
		imperfection = strings.Join(vocab.Sample(vocab.Imperfection, 2, c.rng), ", ")
	}
	hair := c.slot(app.Hair, vocab.Hair)
	lighting := c.slot(app.Lighting, vocab.Lighting)
	camera := c.slot(app.Camera, vocab.Camera)
	clothing := c.pickClothing(intent.NSFWLevel, intent.ClothingHint)
	pose := c.buildPose(intent)
	c.mu.Unlock()

	core := []string{
		fmt.Sprintf("%s woman in her %s, %s face", id.ethnicity, id.ageBand, id.faceShape),
		imperfection,
		hair,
		vocab.AnatomyBoilerplate,
		clothing,
		pose,
		id.location,
		lighting,
		camera,
	}
	positive := c.fit(core)

	bundle := domain.PromptBundle{
		PositivePrompt: positive,
		NegativePrompt: vocab.NegativePrompt,
		NSFWLevel:      intent.NSFWLevel,
		Fingerprint:    id.fingerprint(),
	}
	if history != nil {
		history.Record(bundle.Fingerprint)
	}
	return bundle, nil
}

func (c *Composer) slot(explicit string, cat vocab.Category) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return vocab.Pick(cat, c.rng)
}

// pickIdentity draws candidate combinations and keeps one with probability
// proportional to 1/(1+penalty). Explicit intent values are fixed in every
// candidate. Age overrides outside the adult bands are ignored.
func (c *Composer) pickIdentity(intent domain.RequestIntent, history *diversity.Tracker) identity {
	app := intent.Appearance
	age := strings.TrimSpace(app.AgeBand)
	if age != "" && !vocab.Contains(vocab.AgeBand, age) {
		age = ""
	}
	candidates := make([]identity, c.cfg.Candidates)
	weights := make([]float64, c.cfg.Candidates)
	var total float64
	for i := range candidates {
		cand := identity{
			ethnicity: c.slot(app.Ethnicity, vocab.Ethnicity),
			ageBand:   c.slot(age, vocab.AgeBand),
			faceShape: c.slot(app.FaceShape, vocab.FaceShape),
			location:  c.slot(intent.Location, vocab.Context),
		}
		w := 1.0
		if history != nil {
			w = 1 / (1 + history.PenaltyFor(cand.fingerprint()))
		}
		candidates[i] = cand
		weights[i] = w
		total += w
	}
	r := c.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// pickClothing selects from the level's fixed set only. A hint narrows the
// choice to descriptors mentioning one of its words; it never changes level.
func (c *Composer) pickClothing(level domain.NSFWLevel, hint string) string {
	set := vocab.Clothing(level)
	for _, word := range strings.Fields(strings.ToLower(hint)) {
		if len(word) < 3 {
			continue
		}
		for _, item := range set {
			if strings.Contains(item, word) {
				return item
			}
		}
	}
	return set[c.rng.IntN(len(set))]
}

func (c *Composer) buildPose(intent domain.RequestIntent) string {
	objects := cleanList(intent.Objects)
	action := strings.TrimSpace(intent.Action)
	var pose string
	switch {
	case action != "":
		pose = action
		lower := strings.ToLower(action)
		switch {
		case len(objects) == 0:
		case lower == "holding" || lower == "wearing":
			pose += " " + strings.Join(objects, ", ")
		case strings.HasPrefix(lower, "holding ") || strings.HasPrefix(lower, "wearing "):
			if missing := missingFrom(lower, objects); len(missing) > 0 {
				pose += ", with " + strings.Join(missing, ", ")
			}
		default:
			pose += ", holding " + strings.Join(objects, ", ")
		}
	case strings.TrimSpace(intent.PoseHint) != "":
		pose = strings.TrimSpace(intent.PoseHint)
		if len(objects) > 0 {
			pose += ", with " + strings.Join(objects, ", ")
		}
	default:
		pose = vocab.Pick(vocab.Pose, c.rng)
		if len(objects) > 0 {
			pose += ", with " + strings.Join(objects, ", ")
		}
	}
	if expr, ok := moodExpressions[intent.Mood]; ok {
		pose += ", " + expr
	}
	return pose
}

// fit appends quality, photorealism and padding tags so the prompt lands in
// the configured word window. Non-essential tags are dropped from the end
// when the core is long; padding is added until the minimum is reached.
func (c *Composer) fit(core []string) string {
	var segments []string
	count := 0
	for _, s := range core {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
			count += vocab.WordCount(s)
		}
	}

	tail := append(vocab.Values(vocab.QualityTag), vocab.Values(vocab.PhotorealTag)...)
	for _, t := range tail {
		count += vocab.WordCount(t)
	}
	for i := len(tail) - 1; i >= 0 && count > c.cfg.MaxWords; i-- {
		if essentialTags[tail[i]] {
			continue
		}
		count -= vocab.WordCount(tail[i])
		tail = append(tail[:i], tail[i+1:]...)
	}
	segments = append(segments, tail...)

	if count < c.cfg.MinWords {
		for _, p := range vocab.Values(vocab.PaddingTag) {
			w := vocab.WordCount(p)
			if count+w > c.cfg.MaxWords {
				continue
			}
			segments = append(segments, p)
			count += w
			if count >= c.cfg.MinWords {
				break
			}
		}
	}
	return strings.Join(segments, ", ")
}

func missingFrom(text string, objects []string) []string {
	var out []string
	for _, o := range objects {
		if !strings.Contains(text, strings.ToLower(o)) {
			out = append(out, o)
		}
	}
	return out
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
