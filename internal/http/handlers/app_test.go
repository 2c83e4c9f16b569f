package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"companion/internal/domain"
)

func TestFailMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid request", fmt.Errorf("%w: character_id is required", domain.ErrInvalidRequest), http.StatusBadRequest, "bad_request"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"rejected", fmt.Errorf("%w: minor", domain.ErrContentRejected), http.StatusUnprocessableEntity, "content_rejected"},
		{"provider", fmt.Errorf("%w: upstream 503", domain.ErrProviderFailure), http.StatusBadGateway, "generation_failed"},
		{"timeout", domain.ErrRenderTimeout, http.StatusBadGateway, "generation_failed"},
		{"validation", domain.ErrValidationFailed, http.StatusBadGateway, "generation_failed"},
		{"invalid intent", fmt.Errorf("%w: nsfw_level 7 outside 0..3", domain.ErrInvalidIntent), http.StatusInternalServerError, "internal"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	app := NewApp(nil, nil, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.fail(rec, httptest.NewRequest(http.MethodPost, "/v1/images/generate", nil), tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", body.Error.Code, tc.code)
			}
		})
	}

	rec := httptest.NewRecorder()
	app.fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), context.Canceled)
	if rec.Body.Len() != 0 {
		t.Fatalf("cancelled request wrote %q", rec.Body.String())
	}
}

func TestOpenAPIServesConditionalJSONAndDocs(t *testing.T) {
	app := NewApp(nil, nil, nil)

	rec := httptest.NewRecorder()
	app.OpenAPIJSON(rec, httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil))
	etag := rec.Header().Get("ETag")
	if rec.Code != http.StatusOK || etag == "" || !json.Valid(rec.Body.Bytes()) {
		t.Fatalf("spec: status %d etag %q", rec.Code, etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	app.OpenAPIJSON(rec, req)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Fatalf("conditional GET: status %d, %d bytes", rec.Code, rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	app.OpenAPIDocs(rec, httptest.NewRequest(http.MethodGet, "/v1/docs", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "<title>Companion Image API") || !strings.Contains(body, `spec-url="/v1/openapi.json"`) {
		t.Fatalf("docs page:\n%s", body)
	}
}
