package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"companion/internal/infra"
)

const (
	DefaultPollinationsBaseURL = "https://image.pollinations.ai/prompt"
	DefaultPollinationsModel   = "flux"
	pollinationsName           = "pollinations"
	maxImageBytes              = 20 << 20
)

// PollinationsOptions configures PollinationsRenderer.
type PollinationsOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// MaxBytes caps the image body. Defaults to 20 MiB.
	MaxBytes   int64
}

// PollinationsRenderer renders through the keyless Pollinations GET API. The
// prompt travels in the URL path; options travel as query parameters.
type PollinationsRenderer struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	maxBytes   int64
}

func NewPollinationsRenderer(opts PollinationsOptions) *PollinationsRenderer {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultPollinationsBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultPollinationsModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// The caller bounds each render with its own context deadline.
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.Nop())
		logger = &l
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = maxImageBytes
	}
	return &PollinationsRenderer{baseURL: baseURL, model: model, httpClient: httpClient, logger: logger, maxBytes: maxBytes}
}

func (p *PollinationsRenderer) Name() string {
	return pollinationsName
}

func (p *PollinationsRenderer) endpoint(req RenderRequest) string {
	q := url.Values{}
	q.Set("width", strconv.Itoa(req.Width))
	q.Set("height", strconv.Itoa(req.Height))
	q.Set("model", coalesce(req.Model, p.model))
	q.Set("nologo", "true")
	q.Set("private", "true")
	if req.Seed > 0 {
		q.Set("seed", strconv.Itoa(req.Seed))
	}
	if req.NegativePrompt != "" {
		q.Set("negative_prompt", req.NegativePrompt)
	}
	return p.baseURL + "/" + url.PathEscape(req.Prompt) + "?" + q.Encode()
}

// Render implements Renderer.
func (p *PollinationsRenderer) Render(ctx context.Context, req RenderRequest) (*RenderedImage, error) {
	req = req.Normalize()
	if req.Prompt == "" {
		return nil, &RenderError{Provider: pollinationsName, Err: errors.New("prompt is required")}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(req), nil)
	if err != nil {
		return nil, &RenderError{Provider: pollinationsName, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, pollinationsName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RenderError{
			Provider:   pollinationsName,
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, transportError(ctx, pollinationsName, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > p.maxBytes {
		return nil, &RenderError{Provider: pollinationsName, StatusCode: resp.StatusCode, Err: fmt.Errorf("image body exceeds %d bytes", p.maxBytes)}
	}
	if len(data) == 0 {
		return nil, &RenderError{Provider: pollinationsName, StatusCode: resp.StatusCode, Err: errors.New("empty image body")}
	}
	mime := normalizeFormat(resp.Header.Get("Content-Type"))
	if mime == "" {
		mime = normalizeFormat(http.DetectContentType(data))
	}
	if mime == "" {
		return nil, &RenderError{Provider: pollinationsName, StatusCode: resp.StatusCode, Err: errors.New("response is not an image")}
	}

	p.logger.Debug().
		Str("provider", pollinationsName).
		Str("request_id", req.RequestID).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("pollinations: rendered image")
	return &RenderedImage{
		Data:     data,
		MIME:     mime,
		Width:    req.Width,
		Height:   req.Height,
		Provider: pollinationsName,
	}, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ Renderer = (*PollinationsRenderer)(nil)
