package document

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// CachedSource shares fetched documents between sessions for a bounded time.
// Failures are never cached.
type CachedSource struct {
	next  ports.DocumentSource
	cache *expirable.LRU[string, string]
}

func NewCachedSource(next ports.DocumentSource, size int, ttl time.Duration) *CachedSource {
	if size <= 0 {
		size = 16
	}
	return &CachedSource{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *CachedSource) Fetch(ctx context.Context, url string) (string, error) {
	if text, ok := c.cache.Get(url); ok {
		return text, nil
	}
	text, err := c.next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	c.cache.Add(url, text)
	return text, nil
}

// Invalidate forgets a cached document so the next fetch goes upstream.
func (c *CachedSource) Invalidate(url string) {
	c.cache.Remove(url)
}
