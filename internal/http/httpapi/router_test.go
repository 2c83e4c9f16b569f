package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"companion/internal/adapter/repo"
	"companion/internal/composer"
	"companion/internal/diversity"
	"companion/internal/http/handlers"
	"companion/internal/intent"
	"companion/internal/pipeline"
	"companion/internal/providers/image"
	"companion/internal/storage"
	"companion/internal/validator"
)

type renderFunc func(ctx context.Context, req image.RenderRequest) (*image.RenderedImage, error)

func (f renderFunc) Render(ctx context.Context, req image.RenderRequest) (*image.RenderedImage, error) {
	return f(ctx, req)
}

func (renderFunc) Name() string { return "stub" }

var pngBytes = []byte("\x89PNG\r\n\x1a\nrouter-test")

func okRenderer(_ context.Context, req image.RenderRequest) (*image.RenderedImage, error) {
	return &image.RenderedImage{Data: pngBytes, MIME: "image/png", Width: req.Width, Height: req.Height, Provider: "stub"}, nil
}

func newTestServer(t *testing.T, render renderFunc, rateLimit int) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	images, err := repo.OpenSQLite(ctx, filepath.Join(dir, "images.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = images.Close() })

	svc, err := pipeline.New(pipeline.Deps{
		Extractor: intent.NewRuleExtractor(),
		Composer:  composer.New(composer.DefaultConfig()),
		Validator: validator.New(validator.Config{}),
		History:   diversity.New(diversity.DefaultWindowSize),
		Renderer:  render,
		Store:     store,
		Repo:      images,
	}, pipeline.Options{RenderMaxRetries: 0})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	app := handlers.NewApp(svc, images, nil)
	srv := httptest.NewServer(NewRouter(app, RouterOptions{RateLimitPerMin: rateLimit, CORSOrigins: []string{"*"}}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	defer resp.Body.Close()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, okRenderer, 0)
	resp, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGenerateGalleryLifecycle(t *testing.T) {
	srv := newTestServer(t, okRenderer, 0)

	resp := postJSON(t, srv.URL+"/v1/images/generate", map[string]any{
		"character_id": "luna",
		"text":         "selfie in the kitchen holding a coffee",
		"character":    map[string]any{"ethnicity": "Latina", "age": 27},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if len(created.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(created.Items))
	}
	item := created.Items[0]
	if _, ok := item["score"]; ok {
		t.Fatalf("scores must not be exposed: %v", item)
	}
	id, _ := item["id"].(string)
	prompt, _ := item["prompt"].(string)
	if id == "" || !strings.Contains(prompt, "Latina") {
		t.Fatalf("unexpected item: %v", item)
	}

	content, err := http.Get(srv.URL + "/v1/images/" + id + "/content")
	if err != nil {
		t.Fatalf("GET content: %v", err)
	}
	var got bytes.Buffer
	_, _ = got.ReadFrom(content.Body)
	content.Body.Close()
	if content.Header.Get("Content-Type") != "image/png" || !bytes.Equal(got.Bytes(), pngBytes) {
		t.Fatalf("unexpected content: %s %q", content.Header.Get("Content-Type"), got.Bytes())
	}

	list, err := http.Get(srv.URL + "/v1/characters/luna/images?limit=5")
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	var gallery struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.NewDecoder(list.Body).Decode(&gallery)
	list.Body.Close()
	if len(gallery.Items) != 1 || gallery.Items[0]["id"] != id {
		t.Fatalf("unexpected gallery: %v", gallery.Items)
	}

	archive, err := http.Get(srv.URL + "/v1/characters/luna/images/archive")
	if err != nil {
		t.Fatalf("GET archive: %v", err)
	}
	var zbuf bytes.Buffer
	_, _ = zbuf.ReadFrom(archive.Body)
	archive.Body.Close()
	zr, err := zip.NewReader(bytes.NewReader(zbuf.Bytes()), int64(zbuf.Len()))
	if err != nil {
		t.Fatalf("archive is not a zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != id+".png" {
		t.Fatalf("unexpected archive entries: %v", zr.File)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/images/"+id, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", del.StatusCode)
	}

	missing, err := http.Get(srv.URL + "/v1/images/" + id)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", missing.StatusCode)
	}
	if env := decodeError(t, missing); env.Error.Code != "not_found" {
		t.Fatalf("unexpected error code %q", env.Error.Code)
	}
}

func TestGenerateErrors(t *testing.T) {
	failing := func(context.Context, image.RenderRequest) (*image.RenderedImage, error) {
		return nil, &image.RenderError{Provider: "stub", StatusCode: 400, Err: errors.New("upstream said: invalid api key sk-123")}
	}
	tests := []struct {
		name     string
		render   renderFunc
		body     any
		wantCode int
		wantErr  string
	}{
		{name: "bad json", render: okRenderer, body: "not-an-object", wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "missing character", render: okRenderer, body: map[string]any{"text": "selfie"}, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "minor character", render: okRenderer, body: map[string]any{"character_id": "c", "character": map[string]any{"age": 16}}, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "bad size", render: okRenderer, body: map[string]any{"character_id": "c", "width": 64}, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "minor request", render: okRenderer, body: map[string]any{"character_id": "c", "text": "photo of a teen"}, wantCode: http.StatusUnprocessableEntity, wantErr: "content_rejected"},
		{name: "render failure", render: failing, body: map[string]any{"character_id": "c", "text": "selfie"}, wantCode: http.StatusBadGateway, wantErr: "generation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.render, 0)
			resp := postJSON(t, srv.URL+"/v1/images/generate", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, resp.StatusCode)
			}
			env := decodeError(t, resp)
			if env.Error.Code != tt.wantErr {
				t.Fatalf("expected %q, got %q", tt.wantErr, env.Error.Code)
			}
			if tt.wantErr == "generation_failed" && env.Error.Message != "generation failed, please retry" {
				t.Fatalf("provider details leaked: %q", env.Error.Message)
			}
		})
	}
}

func TestGenerateBatch(t *testing.T) {
	srv := newTestServer(t, okRenderer, 0)
	resp := postJSON(t, srv.URL+"/v1/images/generate", map[string]any{"character_id": "c", "text": "selfie", "count": 2})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		Items  []map[string]any `json:"items"`
		Failed int              `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 2 || out.Failed != 0 {
		t.Fatalf("unexpected batch result: %+v", out)
	}
}

func TestPromptEndpoints(t *testing.T) {
	srv := newTestServer(t, okRenderer, 0)

	resp := postJSON(t, srv.URL+"/v1/prompts/compose", map[string]any{"text": "topless selfie in the bathroom"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("compose: expected 200, got %d", resp.StatusCode)
	}
	var comp struct {
		Intent struct {
			NSFWLevel int `json:"nsfw_level"`
		} `json:"intent"`
		Bundle struct {
			PositivePrompt string `json:"positive_prompt"`
			NSFWLevel      int    `json:"nsfw_level"`
		} `json:"bundle"`
		Report struct {
			Threshold float64 `json:"threshold"`
		} `json:"report"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&comp)
	resp.Body.Close()
	if comp.Bundle.NSFWLevel != comp.Intent.NSFWLevel || comp.Bundle.PositivePrompt == "" {
		t.Fatalf("unexpected composition: %+v", comp)
	}
	if comp.Report.Threshold != validator.ThresholdProduction {
		t.Fatalf("unexpected threshold %v", comp.Report.Threshold)
	}

	resp = postJSON(t, srv.URL+"/v1/prompts/validate", map[string]any{"positive_prompt": comp.Bundle.PositivePrompt})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/prompts/validate", map[string]any{"negative_prompt": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("validate without prompt: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRateLimitSkipsHealth(t *testing.T) {
	srv := newTestServer(t, okRenderer, 1)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/v1/healthz")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("health must not be rate limited, got %d", resp.StatusCode)
		}
	}
	first, _ := http.Get(srv.URL + "/v1/metrics")
	first.Body.Close()
	second, _ := http.Get(srv.URL + "/v1/metrics")
	second.Body.Close()
	if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.StatusCode, second.StatusCode)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	srv := newTestServer(t, okRenderer, 1)
	codes := make([]int, 0, 2)
	for _, xff := range []string{"198.51.100.1", "198.51.100.2"} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/metrics", nil)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", codes)
	}
}
