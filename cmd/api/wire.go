package main

import (
	"context"
	"fmt"

	"companion/internal/adapter/repo"
	"companion/internal/composer"
	"companion/internal/diversity"
	"companion/internal/domain"
	"companion/internal/http/handlers"
	"companion/internal/infra"
	"companion/internal/intent"
	"companion/internal/pipeline"
	"companion/internal/providers/image"
	"companion/internal/providers/qwen"
	"companion/internal/storage"
	"companion/internal/validator"
)

// imageStore is what the API needs from either repository backend.
type imageStore interface {
	domain.ImageRepository
	handlers.Pinger
}

func buildApp(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*handlers.App, func(), error) {
	images, closeStore, err := openImageStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	extractor, err := buildExtractor(cfg, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	threshold := cfg.ValidatorThreshold
	if threshold <= 0 {
		threshold = validator.ThresholdForMode(cfg.ValidatorMode)
	}
	svc, err := pipeline.New(pipeline.Deps{
		Extractor: extractor,
		Composer: composer.New(composer.Config{
			MinWords: cfg.PromptMinWords,
			MaxWords: cfg.PromptMaxWords,
		}),
		Validator: validator.New(validator.Config{
			Threshold: threshold,
			MinWords:  cfg.PromptMinWords,
			MaxWords:  cfg.PromptMaxWords,
		}),
		History:  diversity.New(cfg.DiversityWindow),
		Renderer: renderer,
		Store:    blobs,
		Repo:     images,
	}, pipeline.Options{
		MaxComposeAttempts: cfg.ComposeMaxAttempts,
		RenderTimeout:      cfg.RenderTimeout,
		RenderMaxRetries:   cfg.RenderMaxRetries,
		RenderInterval:     cfg.RenderInterval,
		RetryMaxInterval:   cfg.RenderRetryMaxWait,
		BatchMaxCount:      cfg.BatchMaxCount,
		BatchConcurrency:   cfg.BatchMaxConcurrency,
		Logger:             logger,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return handlers.NewApp(svc, images, logger), closeStore, nil
}

func openImageStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (imageStore, func(), error) {
	switch cfg.StoreDriver {
	case infra.StoreDriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		images := repo.NewImageRepository(infra.NewSQLRunner(pool, *logger))
		if err := images.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure images schema: %w", err)
		}
		return struct {
			domain.ImageRepository
			handlers.Pinger
		}{images, pool}, pool.Close, nil
	default:
		images, err := repo.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return images, func() { _ = images.Close() }, nil
	}
}

func buildExtractor(cfg *infra.Config, logger *infra.Logger) (intent.Extractor, error) {
	rules := intent.NewRuleExtractor()
	if cfg.IntentProvider != infra.IntentProviderOpenAI {
		return rules, nil
	}
	remote, err := intent.NewRemoteExtractor(intent.RemoteOptions{
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.OpenAIModel,
		BaseURL:  cfg.OpenAIBaseURL,
		Timeout:  cfg.IntentTimeout,
		Fallback: rules,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("intent: falling back to rule extractor")
		},
	})
	if err != nil {
		return nil, err
	}
	return intent.NewCachedExtractor(remote, cfg.IntentCacheTTL), nil
}

func buildRenderer(cfg *infra.Config, logger *infra.Logger) (image.Renderer, error) {
	pollinations := image.NewPollinationsRenderer(image.PollinationsOptions{
		BaseURL: cfg.PollinationsBaseURL,
		Model:   cfg.PollinationsModel,
		Logger:  logger,
	})
	if cfg.ImageProvider != infra.ImageProviderQwen {
		return pollinations, nil
	}
	client, err := qwen.NewClient(qwen.Options{
		APIKey:         cfg.QwenAPIKey,
		BaseURL:        cfg.QwenBaseURL,
		Model:          cfg.QwenModel,
		Logger:         logger,
		RequestTimeout: cfg.RenderTimeout,
	})
	if err != nil {
		return nil, err
	}
	return image.NewFallbackRenderer(image.NewQwenRenderer(client), pollinations, func(reason string, err error) {
		logger.Warn().Err(err).Str("reason", reason).Msg("image: falling back to pollinations")
	}), nil
}
