package image

import (
	"context"
	"errors"
)

// FallbackRenderer tries the primary renderer and switches to the fallback
// when the primary is unavailable or fails terminally. Retryable primary
// errors are returned so the caller's retry policy sees them.
type FallbackRenderer struct {
	primary    Renderer
	fallback   Renderer
	onFallback func(reason string, err error)
}

func NewFallbackRenderer(primary, fallback Renderer, onFallback func(reason string, err error)) *FallbackRenderer {
	return &FallbackRenderer{primary: primary, fallback: fallback, onFallback: onFallback}
}

func (f *FallbackRenderer) Name() string {
	if f.primary == nil {
		if f.fallback == nil {
			return "none"
		}
		return f.fallback.Name()
	}
	return f.primary.Name()
}

type availability interface {
	Available() bool
}

// Render implements Renderer.
func (f *FallbackRenderer) Render(ctx context.Context, req RenderRequest) (*RenderedImage, error) {
	if f.primary == nil {
		return f.useFallback(ctx, req, "no_primary", errors.New("primary renderer not configured"))
	}
	if a, ok := f.primary.(availability); ok && !a.Available() {
		return f.useFallback(ctx, req, "missing_credentials", nil)
	}
	img, err := f.primary.Render(ctx, req)
	if err == nil {
		return img, nil
	}
	if IsRetryable(err) || ctx.Err() != nil {
		return nil, err
	}
	return f.useFallback(ctx, req, "primary_failed", err)
}

func (f *FallbackRenderer) useFallback(ctx context.Context, req RenderRequest, reason string, cause error) (*RenderedImage, error) {
	if f.fallback == nil {
		if cause == nil {
			cause = errors.New("renderer unavailable")
		}
		return nil, &RenderError{Provider: f.Name(), Err: cause}
	}
	if f.onFallback != nil {
		f.onFallback(reason, cause)
	}
	return f.fallback.Render(ctx, req)
}

var _ Renderer = (*FallbackRenderer)(nil)
