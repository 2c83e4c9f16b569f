// Package qwen is a minimal DashScope client for Qwen text-to-image models.
// Composed prompts are sent verbatim: server-side prompt extension and
// watermarking are always off.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"companion/internal/infra"
)

const (
	DefaultBaseURL  = "https://dashscope-intl.aliyuncs.com/api/v1"
	DefaultModel    = "qwen-image-plus"
	defaultSide     = 1024
	defaultMaxBytes = 20 << 20
	generationPath  = "/services/aigc/multimodal-generation/generation"
)

var (
	// ErrMissingAPIKey indicates that the client was configured without credentials.
	ErrMissingAPIKey = errors.New("qwen: api key is required")
	// ErrEmptyImage is returned when the service answers without an image.
	ErrEmptyImage    = errors.New("qwen: empty image")
	// ErrImageTooLarge is returned when the downloaded image exceeds the cap.
	ErrImageTooLarge = errors.New("qwen: image too large")
)

// StatusError carries a non-2xx answer, or an in-body error code, from
// DashScope.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("qwen: status %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("qwen: status %d", e.StatusCode)
}

type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// MaxImageBytes caps the downloaded image. Defaults to 20 MiB.
	MaxImageBytes  int64
}

type Client struct {
	apiKey     string
	endpoint   string
	model      string
	maxBytes   int64
	httpClient *http.Client
	logger     zerolog.Logger
}

// ImageRequest is one render. Zero dimensions default to 1024.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Seed           int
	RequestID      string
}

// size renders the DashScope "W*H" form.
func (r ImageRequest) size() string {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = defaultSide
	}
	if h <= 0 {
		h = defaultSide
	}
	return fmt.Sprintf("%d*%d", w, h)
}

// ImageAsset is a downloaded render.
type ImageAsset struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

type generationRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
	Parameters parameters `json:"parameters"`
}

type message struct {
	Role    string        `json:"role"`
	Content []textContent `json:"content"`
}

type textContent struct {
	Text string `json:"text"`
}

type parameters struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size"`
	PromptExtend   bool   `json:"prompt_extend"`
	Watermark      bool   `json:"watermark"`
	Seed           int    `json:"seed,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("qwen: invalid base url: %w", err)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		endpoint:   baseURL + generationPath,
		model:      model,
		maxBytes:   maxBytes,
		httpClient: httpClient,
		logger:     infra.LoggerOrNop(opts.Logger),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage submits one synchronous generation and downloads the result.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("qwen: prompt is required")
	}

	var payload generationRequest
	payload.Model = c.model
	payload.Input.Messages = []message{{Role: "user", Content: []textContent{{Text: prompt}}}}
	payload.Parameters = parameters{
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		Size:           req.size(),
		Seed:           max(req.Seed, 0),
	}

	decoded, err := c.submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	imageURL := firstImageURL(decoded)
	if imageURL == "" {
		return nil, ErrEmptyImage
	}
	data, format, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	width, height := decoded.Usage.Width, decoded.Usage.Height
	if width == 0 || height == 0 {
		width, height = req.Width, req.Height
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", req.RequestID).
		Str("dashscope_request_id", decoded.RequestID).
		Str("size", payload.Parameters.Size).
		Int("bytes", len(data)).
		Msg("qwen: generated image")
	return &ImageAsset{URL: imageURL, Data: data, Format: format, Width: width, Height: height}, nil
}

func (c *Client) submit(ctx context.Context, payload generationRequest) (generationResponse, error) {
	var decoded generationResponse
	body, err := json.Marshal(payload)
	if err != nil {
		return decoded, fmt.Errorf("qwen: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return decoded, fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return decoded, fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decoded, fmt.Errorf("qwen: read response: %w", err)
	}

	// DashScope reports failures both as HTTP status and as an in-body code.
	jsonErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Code: decoded.Code, Message: decoded.Message}
		if jsonErr != nil || statusErr.Message == "" {
			statusErr.Message = strings.TrimSpace(string(raw))
		}
		return decoded, statusErr
	}
	if jsonErr != nil {
		return decoded, fmt.Errorf("qwen: decode response: %w", jsonErr)
	}
	if decoded.Code != "" {
		return decoded, &StatusError{StatusCode: resp.StatusCode, Code: decoded.Code, Message: decoded.Message}
	}
	return decoded, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("qwen: invalid image url %q", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", &StatusError{StatusCode: resp.StatusCode, Message: "download failed"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("qwen: read image: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, "", ErrEmptyImage
	case int64(len(data)) > c.maxBytes:
		return nil, "", fmt.Errorf("%w: over %d bytes", ErrImageTooLarge, c.maxBytes)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" || format == "application/octet-stream" {
		format = http.DetectContentType(data)
	}
	return data, format, nil
}

func firstImageURL(resp generationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if u := strings.TrimSpace(content.Image); u != "" {
				return u
			}
		}
	}
	return ""
}
