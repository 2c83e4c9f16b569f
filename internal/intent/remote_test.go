package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"companion/internal/domain"
)

func chatServer(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	return chatServerFunc(t, func(int32) (int, string) { return status, content })
}

// chatServerFunc answers call n (1-based) with the status and content reply
// returns.
func chatServerFunc(t *testing.T, reply func(n int32) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, content := reply(calls.Add(1))
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		body := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type fallbackRecorder struct {
	reasons []string
}

func (f *fallbackRecorder) hook(reason string, _ error) {
	f.reasons = append(f.reasons, reason)
}

func newRemote(t *testing.T, srv *httptest.Server, rec *fallbackRecorder) *RemoteExtractor {
	t.Helper()
	r, err := NewRemoteExtractor(RemoteOptions{
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/v1/",
		OnFallback:     rec.hook,
		RequestOptions: []option.RequestOption{option.WithHTTPClient(srv.Client())},
	})
	if err != nil {
		t.Fatalf("NewRemoteExtractor: %v", err)
	}
	return r
}

func TestNewRemoteExtractorRequiresKey(t *testing.T) {
	if _, err := NewRemoteExtractor(RemoteOptions{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestRemoteExtractorUsesModelFields(t *testing.T) {
	content := "```json\n{\"objects\":[\"Lollipop\",\"lollipop\",\"\"],\"action\":\"sucking lollipop\",\"location\":\"living room\",\"mood\":\"Playful\",\"nsfw_level\":1,\"minor\":false}\n```"
	srv, calls := chatServer(t, http.StatusOK, content)
	rec := &fallbackRecorder{}
	got := newRemote(t, srv, rec).Extract(context.Background(), "une photo avec une sucette", nil)
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if len(rec.reasons) != 0 {
		t.Fatalf("unexpected fallback: %v", rec.reasons)
	}
	if strings.Join(got.Objects, ",") != "lollipop" {
		t.Fatalf("objects = %v", got.Objects)
	}
	if got.Action != "sucking lollipop" || got.Location != "living room" {
		t.Fatalf("intent = %+v", got)
	}
	if got.Mood != domain.MoodPlayful || got.NSFWLevel != domain.NSFWLingerie {
		t.Fatalf("mood/level = %q/%d", got.Mood, got.NSFWLevel)
	}
}

func TestRemoteExtractorKeepsBaselineForInvalidFields(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"objects":[],"nsfw_level":7}`)
	got := newRemote(t, srv, &fallbackRecorder{}).Extract(context.Background(), "Photo topless seins nus", nil)
	if got.NSFWLevel != domain.NSFWTopless {
		t.Fatalf("level = %d, want rule baseline 2", got.NSFWLevel)
	}
}

func TestRemoteExtractorReappliesOutfitPrecedence(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"nsfw_level":3}`)
	attrs := &domain.CharacterAttributes{Outfit: "black lace lingerie"}
	got := newRemote(t, srv, &fallbackRecorder{}).Extract(context.Background(), "a photo", attrs)
	if got.NSFWLevel != domain.NSFWLingerie {
		t.Fatalf("level = %d, want outfit level 1", got.NSFWLevel)
	}
}

func TestRemoteExtractorNeverLiftsBlock(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"minor":false,"nsfw_level":0}`)
	got := newRemote(t, srv, &fallbackRecorder{}).Extract(context.Background(), "photo of a teen", nil)
	if !got.Blocked {
		t.Fatal("rule block lifted by model")
	}
	srv2, _ := chatServer(t, http.StatusOK, `{"minor":true}`)
	got = newRemote(t, srv2, &fallbackRecorder{}).Extract(context.Background(), "a photo", nil)
	if !got.Blocked {
		t.Fatal("model block ignored")
	}
}

func TestRemoteExtractorFallsBackToRules(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		content string
		reason  string
	}{
		{"server error", http.StatusInternalServerError, "", "chat_completion"},
		{"unauthorized", http.StatusUnauthorized, "", "chat_completion"},
		{"prose", http.StatusOK, "I cannot help with that", "parse_payload"},
		{"empty", http.StatusOK, "   ", "empty_response"},
	}
	raw := "Photo de toi dans la cuisine"
	want := NewRuleExtractor().Extract(context.Background(), raw, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := chatServer(t, tc.status, tc.content)
			rec := &fallbackRecorder{}
			got := newRemote(t, srv, rec).Extract(context.Background(), raw, nil)
			if len(rec.reasons) != 1 || rec.reasons[0] != tc.reason {
				t.Fatalf("fallback reasons = %v, want [%s]", rec.reasons, tc.reason)
			}
			if got.Location != want.Location || got.Action != want.Action || got.NSFWLevel != want.NSFWLevel {
				t.Fatalf("fallback intent = %+v, want %+v", got, want)
			}
		})
	}
}

func TestRemoteExtractorSkipsCallForEmptyText(t *testing.T) {
	srv, calls := chatServer(t, http.StatusOK, `{}`)
	got := newRemote(t, srv, &fallbackRecorder{}).Extract(context.Background(), "  ", nil)
	if calls.Load() != 0 {
		t.Fatalf("calls = %d, want 0", calls.Load())
	}
	if got.NSFWLevel != domain.NSFWSafe || got.Mood != domain.MoodNeutral {
		t.Fatalf("intent = %+v", got)
	}
}
