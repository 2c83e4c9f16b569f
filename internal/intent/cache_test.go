package intent

import (
	"context"
	"net/http"
	"testing"
	"time"

	"companion/internal/domain"
)

func TestCachedExtractorMemoizesNormalizedText(t *testing.T) {
	calls := 0
	inner := ExtractorFunc(func(ctx context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent {
		calls++
		return NewRuleExtractor().Extract(ctx, raw, attrs)
	})
	c := NewCachedExtractor(inner, time.Minute)
	ctx := context.Background()

	first := c.Extract(ctx, "Photo avec un Café", nil)
	second := c.Extract(ctx, "photo avec un cafe", nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if first.Action != second.Action || len(second.Objects) != 1 {
		t.Fatalf("cached intent differs: %+v vs %+v", first, second)
	}

	c.Extract(ctx, "photo avec un cafe", &domain.CharacterAttributes{Age: 30})
	if calls != 2 {
		t.Fatalf("attributes should be part of the key, calls = %d", calls)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestCachedExtractorReturnsCopies(t *testing.T) {
	c := NewCachedExtractor(NewRuleExtractor(), 0)
	ctx := context.Background()
	got := c.Extract(ctx, "photo with an umbrella", nil)
	got.Objects[0] = "mutated"
	again := c.Extract(ctx, "photo with an umbrella", nil)
	if again.Objects[0] != "umbrella" {
		t.Fatalf("cache entry mutated: %v", again.Objects)
	}
}

func TestCachedExtractorSkipsDegradedResults(t *testing.T) {
	srv, calls := chatServerFunc(t, func(n int32) (int, string) {
		if n == 1 {
			return http.StatusServiceUnavailable, ""
		}
		return http.StatusOK, `{"objects":["lollipop"],"action":"sucking lollipop","nsfw_level":1}`
	})
	rec := &fallbackRecorder{}
	c := NewCachedExtractor(newRemote(t, srv, rec), time.Minute)
	ctx := context.Background()

	first := c.Extract(ctx, "a photo with a candy", nil)
	if len(rec.reasons) != 1 || first.Action == "sucking lollipop" {
		t.Fatalf("first call should fall back, reasons=%v intent=%+v", rec.reasons, first)
	}
	if c.Len() != 0 {
		t.Fatalf("degraded result cached, Len = %d", c.Len())
	}

	second := c.Extract(ctx, "a photo with a candy", nil)
	if calls.Load() != 2 {
		t.Fatalf("server calls = %d, want 2", calls.Load())
	}
	if second.Action != "sucking lollipop" {
		t.Fatalf("action = %q after recovery", second.Action)
	}

	c.Extract(ctx, "a photo with a candy", nil)
	if calls.Load() != 2 || c.Len() != 1 {
		t.Fatalf("healthy result not cached, calls=%d len=%d", calls.Load(), c.Len())
	}
}
