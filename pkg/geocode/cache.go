package geocode

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/siterisk/internal/cache"
)

// CachedReverser memoizes successful lookups, including empty places.
type CachedReverser struct {
	next  Reverser
	cache *cache.TTL[Place]
}

// NewCachedReverser wraps next with c.
func NewCachedReverser(next Reverser, c *cache.TTL[Place]) *CachedReverser {
	return &CachedReverser{next: next, cache: c}
}

// cacheKey rounds to five decimals, roughly one meter.
func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lng)
}

// Reverse implements Reverser.
func (c *CachedReverser) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	key := cacheKey(lat, lng)
	if p, ok := c.cache.Get(key); ok {
		zap.L().Debug("geocode cache hit", zap.String("key", key))
		return p, nil
	}
	p, err := c.next.Reverse(ctx, lat, lng)
	if err != nil {
		return Place{}, err
	}
	c.cache.Set(key, p)
	return p, nil
}

// Stats exposes the underlying cache statistics.
func (c *CachedReverser) Stats() cache.Stats { return c.cache.Stats() }
