// Package intent turns free-form image requests into a structured
// RequestIntent. The mapping is a pluggable capability: a keyword rule engine,
// a remote language model, or either behind a cache.
package intent

import (
	"context"

	"companion/internal/domain"
)

// Extractor never fails. Empty or unusable input degrades to
// domain.DefaultIntent with any character-derived fields applied.
type Extractor interface {
	Extract(ctx context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent

func (f ExtractorFunc) Extract(ctx context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent {
	return f(ctx, raw, attrs)
}

// DegradableExtractor is an Extractor that can report when its answer came
// from a fallback path. Degraded results must not be cached.
type DegradableExtractor interface {
	Extractor
	ExtractStatus(ctx context.Context, raw string, attrs *domain.CharacterAttributes) (in domain.RequestIntent, degraded bool)
}
