package image

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"companion/internal/providers/qwen"
)

type qwenImageClient interface {
	GenerateImage(context.Context, qwen.ImageRequest) (*qwen.ImageAsset, error)
	HasCredentials() bool
	Model() string
}

// QwenRenderer renders through DashScope's Qwen image model.
type QwenRenderer struct {
	client qwenImageClient
}

func NewQwenRenderer(client qwenImageClient) *QwenRenderer {
	return &QwenRenderer{client: client}
}

func (g *QwenRenderer) Name() string {
	return "qwen"
}

// Available reports whether the renderer has credentials to call out.
func (g *QwenRenderer) Available() bool {
	return g != nil && g.client != nil && g.client.HasCredentials()
}

// Render implements Renderer.
func (g *QwenRenderer) Render(ctx context.Context, req RenderRequest) (*RenderedImage, error) {
	if !g.Available() {
		return nil, &RenderError{Provider: g.Name(), Err: qwen.ErrMissingAPIKey}
	}
	req = req.Normalize()
	seed := req.Seed
	if seed <= 0 {
		seed = deterministicSeed(req.RequestID, req.Prompt)
	}
	imageReq := qwen.ImageRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Seed:           seed,
		RequestID:      req.RequestID,
	}
	asset, err := g.invokeQwen(ctx, imageReq)
	if err != nil {
		return nil, g.classify(ctx, err)
	}
	mime := normalizeFormat(asset.Format)
	if mime == "" {
		mime = "image/png"
	}
	return &RenderedImage{
		Data:     asset.Data,
		MIME:     mime,
		Width:    asset.Width,
		Height:   asset.Height,
		Provider: g.Name(),
		URL:      asset.URL,
	}, nil
}

// invokeQwen retries once without the negative prompt when DashScope rejects
// the parameters.
func (g *QwenRenderer) invokeQwen(ctx context.Context, req qwen.ImageRequest) (*qwen.ImageAsset, error) {
	asset, err := g.client.GenerateImage(ctx, req)
	if err == nil {
		return asset, nil
	}
	var statusErr *qwen.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 400 || req.NegativePrompt == "" {
		return nil, err
	}
	simplified := req
	simplified.NegativePrompt = ""
	return g.client.GenerateImage(ctx, simplified)
}

func (g *QwenRenderer) classify(ctx context.Context, err error) error {
	var statusErr *qwen.StatusError
	switch {
	case errors.As(err, &statusErr):
		retryable := retryableStatus(statusErr.StatusCode) || isTransientQwenCode(statusErr.Code)
		return &RenderError{Provider: g.Name(), StatusCode: statusErr.StatusCode, Retryable: retryable, Err: err}
	case errors.Is(err, qwen.ErrMissingAPIKey), errors.Is(err, qwen.ErrEmptyImage), errors.Is(err, qwen.ErrImageTooLarge):
		return &RenderError{Provider: g.Name(), Err: err}
	default:
		return transportError(ctx, g.Name(), err)
	}
}

func isTransientQwenCode(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	return code == "internalerror" || code == "throttling" || strings.Contains(code, "timeout")
}

func deterministicSeed(values ...any) int {
	var parts []string
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	n := binary.BigEndian.Uint32(sum[:4])
	value := int(n % 2147483647)
	if value <= 0 {
		fallback := binary.BigEndian.Uint32(sum[4:8]) % 2147483647
		if fallback == 0 {
			fallback = 1
		}
		value = int(fallback)
	}
	return value
}

var _ Renderer = (*QwenRenderer)(nil)
