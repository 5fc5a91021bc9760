package anchor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/siterisk/internal/cache"
)

// CachedFinder memoizes Nearest results, including "no facility" answers.
// Errors are never cached.
type CachedFinder struct {
	next  Finder
	cache *cache.TTL[*Facility]
}

// NewCachedFinder wraps next with c.
func NewCachedFinder(next Finder, c *cache.TTL[*Facility]) *CachedFinder {
	return &CachedFinder{next: next, cache: c}
}

func cacheKey(lat, lng, radiusM float64) string {
	return fmt.Sprintf("%.5f,%.5f,%.0f", lat, lng, radiusM)
}

// Nearest implements Finder.
func (c *CachedFinder) Nearest(ctx context.Context, lat, lng, radiusM float64) (*Facility, error) {
	key := cacheKey(lat, lng, radiusM)
	if f, ok := c.cache.Get(key); ok {
		zap.L().Debug("anchor: cache hit", zap.String("key", key))
		return copyFacility(f), nil
	}
	f, err := c.next.Nearest(ctx, lat, lng, radiusM)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, copyFacility(f))
	return f, nil
}

// Stats exposes the underlying cache statistics.
func (c *CachedFinder) Stats() cache.Stats { return c.cache.Stats() }

func copyFacility(f *Facility) *Facility {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}
