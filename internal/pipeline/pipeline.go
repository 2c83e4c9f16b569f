// Package pipeline runs one image request end to end: extract the intent,
// compose and validate a prompt, render it, store the bytes and persist the
// record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"companion/internal/composer"
	"companion/internal/diversity"
	"companion/internal/domain"
	"companion/internal/infra"
	"companion/internal/intent"
	"companion/internal/providers/image"
	"companion/internal/storage"
	"companion/internal/validator"
)

const (
	DefaultMaxComposeAttempts = 3
	DefaultRenderTimeout      = 30 * time.Second
	DefaultBatchMaxCount      = 4
	DefaultBatchConcurrency   = 2

	MinDimension = 256
	MaxDimension = 2048
)

// BlobStore holds rendered image bytes.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Options tunes the pipeline. Zero values take the defaults above, except
// RenderMaxRetries where zero means a single attempt.
type Options struct {
	MaxComposeAttempts int
	// RequireValidation aborts with domain.ErrValidationFailed when no attempt
	// reaches the threshold. By default the best attempt is rendered anyway.
	RequireValidation    bool
	RenderTimeout        time.Duration
	RenderMaxRetries     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// RenderInterval spaces consecutive renders process-wide. Zero disables
	// spacing.
	RenderInterval   time.Duration
	BatchMaxCount    int
	BatchConcurrency int
	Model            string
	Logger           *infra.Logger
	Now              func() time.Time
	NewID            func() string
}

func (o Options) withDefaults() Options {
	if o.MaxComposeAttempts <= 0 {
		o.MaxComposeAttempts = DefaultMaxComposeAttempts
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = DefaultRenderTimeout
	}
	if o.RenderMaxRetries < 0 {
		o.RenderMaxRetries = 0
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = 5 * time.Second
	}
	if o.BatchMaxCount <= 0 {
		o.BatchMaxCount = DefaultBatchMaxCount
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = DefaultBatchConcurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Deps are the collaborators of a Service. All are required.
type Deps struct {
	Extractor intent.Extractor
	Composer  *composer.Composer
	Validator *validator.Validator
	History   *diversity.Tracker
	Renderer  image.Renderer
	Store     BlobStore
	Repo      domain.ImageRepository
}

// Service is safe for concurrent use. The diversity history is the only
// state shared between requests.
type Service struct {
	deps    Deps
	opts    Options
	logger  zerolog.Logger
	spacing *rate.Limiter

	generated atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Stats is a point-in-time view of the service counters and the diversity
// window.
type Stats struct {
	ImagesGenerated    int64    `json:"images_generated"`
	RenderFailures     int64    `json:"render_failures"`
	RequestsRejected   int64    `json:"requests_rejected"`
	DiversityWindow    int      `json:"diversity_window"`
	DiversityRecorded  int      `json:"diversity_recorded"`
	RecentFingerprints []string `json:"recent_fingerprints"`
	ValidatorThreshold float64  `json:"validator_threshold"`
}

func (s *Service) Stats() Stats {
	return Stats{
		ImagesGenerated:    s.generated.Load(),
		RenderFailures:     s.failed.Load(),
		RequestsRejected:   s.rejected.Load(),
		DiversityWindow:    s.deps.History.Size(),
		DiversityRecorded:  s.deps.History.Len(),
		RecentFingerprints: s.deps.History.Snapshot(),
		ValidatorThreshold: s.deps.Validator.Threshold(),
	}
}

func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Composer == nil:
		return nil, errors.New("pipeline: composer is required")
	case deps.Validator == nil:
		return nil, errors.New("pipeline: validator is required")
	case deps.History == nil:
		return nil, errors.New("pipeline: diversity history is required")
	case deps.Renderer == nil:
		return nil, errors.New("pipeline: renderer is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: blob store is required")
	case deps.Repo == nil:
		return nil, errors.New("pipeline: image repository is required")
	}
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RenderInterval > 0 {
		limit = rate.Every(opts.RenderInterval)
	}
	return &Service{
		deps:    deps,
		opts:    opts,
		logger:  infra.LoggerOrNop(opts.Logger),
		spacing: rate.NewLimiter(limit, 1),
	}, nil
}

// GenerateRequest is one user request for images of a character.
type GenerateRequest struct {
	CharacterID string
	Text        string
	Character   *domain.CharacterAttributes
	Width       int
	Height      int
	Model       string
	Count       int
	RequestID   string
}

func (r GenerateRequest) validate(maxCount int) (GenerateRequest, error) {
	r.CharacterID = strings.TrimSpace(r.CharacterID)
	if r.CharacterID == "" {
		return r, fmt.Errorf("%w: character_id is required", domain.ErrInvalidRequest)
	}
	for _, d := range []int{r.Width, r.Height} {
		if d != 0 && (d < MinDimension || d > MaxDimension) {
			return r, fmt.Errorf("%w: width and height must be within %d..%d", domain.ErrInvalidRequest, MinDimension, MaxDimension)
		}
	}
	if r.Count <= 0 {
		r.Count = 1
	}
	if r.Count > maxCount {
		return r, fmt.Errorf("%w: count must be at most %d", domain.ErrInvalidRequest, maxCount)
	}
	return r, nil
}

// Composition is the prompt side of a request, without rendering.
type Composition struct {
	Intent   domain.RequestIntent    `json:"intent"`
	Bundle   domain.PromptBundle     `json:"bundle"`
	Report   domain.ValidationReport `json:"report"`
	Attempts int                     `json:"attempts"`
}

// ComposeOnly extracts the intent and returns the best composed prompt.
func (s *Service) ComposeOnly(ctx context.Context, text string, attrs *domain.CharacterAttributes) (Composition, error) {
	in, err := s.extract(ctx, text, attrs)
	if err != nil {
		return Composition{}, err
	}
	return s.composeBest(ctx, in)
}

// Validate scores an arbitrary bundle.
func (s *Service) Validate(b domain.PromptBundle) domain.ValidationReport {
	return s.deps.Validator.Validate(b)
}

func (s *Service) extract(ctx context.Context, text string, attrs *domain.CharacterAttributes) (domain.RequestIntent, error) {
	in := s.deps.Extractor.Extract(ctx, text, attrs)
	if in.Blocked {
		s.rejected.Add(1)
		s.logger.Warn().
			Str("request_id", requestID(ctx)).
			Str("reason", in.BlockReason).
			Msg("pipeline: request rejected")
		return in, fmt.Errorf("%w: %s", domain.ErrContentRejected, in.BlockReason)
	}
	return in, nil
}

// composeBest composes up to MaxComposeAttempts prompts and keeps the highest
// scoring one, stopping early on the first that passes.
func (s *Service) composeBest(ctx context.Context, in domain.RequestIntent) (Composition, error) {
	var best Composition
	for attempt := 1; attempt <= s.opts.MaxComposeAttempts; attempt++ {
		bundle, err := s.deps.Composer.Compose(in, s.deps.History)
		if err != nil {
			return Composition{}, err
		}
		report := s.deps.Validator.Validate(bundle)
		s.logger.Debug().
			Str("request_id", requestID(ctx)).
			Int("attempt", attempt).
			Str("fingerprint", bundle.Fingerprint).
			Int("nsfw_level", int(bundle.NSFWLevel)).
			Float64("score", report.CompositeScore).
			Strs("failed", report.Failed()).
			Msg("pipeline: composed prompt")
		if attempt == 1 || report.CompositeScore > best.Report.CompositeScore {
			best = Composition{Intent: in, Bundle: bundle, Report: report}
		}
		best.Attempts = attempt
		if report.Passed {
			break
		}
	}
	if !best.Report.Passed {
		s.logger.Warn().
			Str("request_id", requestID(ctx)).
			Float64("score", best.Report.CompositeScore).
			Float64("threshold", best.Report.Threshold).
			Int("attempt", best.Attempts).
			Msg("pipeline: no prompt reached the validation threshold")
		if s.opts.RequireValidation {
			return best, domain.ErrValidationFailed
		}
	}
	return best, nil
}

// Generate renders one image for the request. Count is ignored.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*domain.ImageRecord, error) {
	req.Count = 1
	req, err := req.validate(1)
	if err != nil {
		return nil, err
	}
	ctx = withRequestID(ctx, req.RequestID)
	in, err := s.extract(ctx, req.Text, req.Character)
	if err != nil {
		return nil, err
	}
	return s.generateOne(ctx, req, in)
}

func (s *Service) generateOne(ctx context.Context, req GenerateRequest, in domain.RequestIntent) (*domain.ImageRecord, error) {
	comp, err := s.composeBest(ctx, in)
	if err != nil {
		return nil, err
	}
	img, err := s.render(ctx, image.RenderRequest{
		Prompt:         comp.Bundle.PositivePrompt,
		NegativePrompt: comp.Bundle.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Model:          coalesce(req.Model, s.opts.Model),
		RequestID:      requestID(ctx),
	})
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, req.CharacterID, comp, img)
}

// render calls the renderer under a per-attempt timeout and retries
// retryable failures with exponential backoff, at most RenderMaxRetries times.
func (s *Service) render(ctx context.Context, req image.RenderRequest) (*image.RenderedImage, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.RetryInitialInterval
	exp.MaxInterval = s.opts.RetryMaxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.opts.RenderMaxRetries)), ctx)

	attempt := 0
	op := func() (*image.RenderedImage, error) {
		attempt++
		if err := s.spacing.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		rctx, cancel := context.WithTimeout(ctx, s.opts.RenderTimeout)
		defer cancel()
		img, err := s.deps.Renderer.Render(rctx, req)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", domain.ErrRenderTimeout, s.opts.RenderTimeout, err)
		}
		if !image.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn().Err(err).
			Str("request_id", req.RequestID).
			Str("provider", s.deps.Renderer.Name()).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("pipeline: render failed, retrying")
	}

	img, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error().Err(err).
			Str("request_id", req.RequestID).
			Str("provider", s.deps.Renderer.Name()).
			Int("attempt", attempt).
			Msg("pipeline: render failed")
		if errors.Is(err, domain.ErrRenderTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	return img, nil
}

func (s *Service) persist(ctx context.Context, characterID string, comp Composition, img *image.RenderedImage) (*domain.ImageRecord, error) {
	id := s.opts.NewID()
	created := s.opts.Now().UTC()
	key, err := s.deps.Store.Write(ctx, storage.ImageKey(characterID, created, id, img.MIME), img.Data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: store image: %w", err)
	}
	rec := &domain.ImageRecord{
		ID:             id,
		CharacterID:    characterID,
		Prompt:         comp.Bundle.PositivePrompt,
		NegativePrompt: comp.Bundle.NegativePrompt,
		NSFWLevel:      comp.Bundle.NSFWLevel,
		Fingerprint:    comp.Bundle.Fingerprint,
		Score:          comp.Report.CompositeScore,
		Provider:       img.Provider,
		StorageKey:     key,
		MIME:           img.MIME,
		Bytes:          int64(len(img.Data)),
		Width:          img.Width,
		Height:         img.Height,
		CreatedAt:      created,
	}
	if err := s.deps.Repo.Save(ctx, rec); err != nil {
		if delErr := s.deps.Store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error().Err(delErr).Str("storage_key", key).Msg("pipeline: orphaned blob")
		}
		return nil, fmt.Errorf("pipeline: save image record: %w", err)
	}
	s.generated.Add(1)
	s.logger.Info().
		Str("request_id", requestID(ctx)).
		Str("character_id", characterID).
		Str("image_id", rec.ID).
		Str("fingerprint", rec.Fingerprint).
		Int("nsfw_level", int(rec.NSFWLevel)).
		Float64("score", rec.Score).
		Str("provider", rec.Provider).
		Msg("pipeline: image generated")
	return rec, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type ctxKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
