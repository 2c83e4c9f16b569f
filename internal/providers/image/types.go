package image

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RenderRequest is the normalized input passed to any image renderer.
type RenderRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Model          string
	Seed           int
	RequestID      string
}

// RenderedImage is the raw output of one render.
type RenderedImage struct {
	Data     []byte
	MIME     string
	Width    int
	Height   int
	Provider string
	URL      string
}

// Renderer turns a prompt into image bytes. Implementations are black boxes
// that may be slow, fail or time out.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*RenderedImage, error)
	Name() string
}

const (
	DefaultWidth  = 1024
	DefaultHeight = 1024
	maxDimension  = 2048
)

// Normalize applies default dimensions and trims text fields.
func (r RenderRequest) Normalize() RenderRequest {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.NegativePrompt = strings.TrimSpace(r.NegativePrompt)
	r.Model = strings.TrimSpace(r.Model)
	if r.Width <= 0 {
		r.Width = DefaultWidth
	}
	if r.Height <= 0 {
		r.Height = DefaultHeight
	}
	if r.Width > maxDimension {
		r.Width = maxDimension
	}
	if r.Height > maxDimension {
		r.Height = maxDimension
	}
	return r
}

// RenderError describes a failed render and whether trying again may help.
type RenderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *RenderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient render failure: transport
// errors, timeouts, 408, 425, 429 and 5xx answers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RenderError
	if errors.As(err, &re) {
		return re.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooEarly, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// transportError wraps a failed HTTP exchange. The caller's own cancellation
// is terminal; anything else on the wire is worth another try.
func transportError(ctx context.Context, provider string, err error) *RenderError {
	return &RenderError{Provider: provider, Retryable: !errors.Is(ctx.Err(), context.Canceled), Err: err}
}

func normalizeFormat(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		if strings.HasPrefix(mime, "image/") {
			return mime
		}
		return ""
	}
}
