package intent

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"

	"companion/internal/domain"
)

const DefaultCacheTTL = 10 * time.Minute

// CachedExtractor memoizes another extractor by normalized text and
// character attributes. Results a DegradableExtractor marks as degraded are
// returned but not stored.
type CachedExtractor struct {
	next  Extractor
	cache *gocache.Cache
}

func NewCachedExtractor(next Extractor, ttl time.Duration) *CachedExtractor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedExtractor{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func cacheKey(raw string, attrs *domain.CharacterAttributes) string {
	d := xxhash.New()
	_, _ = d.WriteString(Normalize(raw))
	_, _ = d.WriteString("\x00")
	if attrs != nil {
		if b, err := json.Marshal(attrs); err == nil {
			_, _ = d.Write(b)
		}
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// Extract implements Extractor.
func (c *CachedExtractor) Extract(ctx context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent {
	key := cacheKey(raw, attrs)
	if v, ok := c.cache.Get(key); ok {
		if in, ok := v.(domain.RequestIntent); ok {
			return cloneIntent(in)
		}
	}
	var (
		in       domain.RequestIntent
		degraded bool
	)
	if d, ok := c.next.(DegradableExtractor); ok {
		in, degraded = d.ExtractStatus(ctx, raw, attrs)
	} else {
		in = c.next.Extract(ctx, raw, attrs)
	}
	if !degraded {
		c.cache.SetDefault(key, cloneIntent(in))
	}
	return in
}

// Len reports the number of cached entries.
func (c *CachedExtractor) Len() int {
	return c.cache.ItemCount()
}

func cloneIntent(in domain.RequestIntent) domain.RequestIntent {
	if in.Objects != nil {
		in.Objects = append([]string(nil), in.Objects...)
	}
	return in
}
