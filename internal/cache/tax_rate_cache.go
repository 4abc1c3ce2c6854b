package cache

import (
	"strings"
	"time"

	"github.com/smallbiznis/rfacto/internal/config"
)

const defaultTaxRateTTL = 5 * time.Minute

// TaxRateCache stores province rate lookups, including misses.
type TaxRateCache interface {
	Get(province string) (rate float64, found bool, ok bool)
	Set(province string, rate float64, found bool)
	Invalidate()
}

type taxRateLookup struct {
	rate  float64
	found bool
}

type taxRateCache struct {
	items   Cache[string, taxRateLookup]
	runtime *config.RuntimeConfigHolder
}

// NewTaxRateCache returns a cache whose TTL follows the hot-reloaded runtime config.
func NewTaxRateCache(runtime *config.RuntimeConfigHolder) TaxRateCache {
	return &taxRateCache{
		items:   NewTTLCache[string, taxRateLookup](),
		runtime: runtime,
	}
}

func newTaxRateCacheWithStore(items Cache[string, taxRateLookup], runtime *config.RuntimeConfigHolder) *taxRateCache {
	return &taxRateCache{items: items, runtime: runtime}
}

func (c *taxRateCache) Get(province string) (float64, bool, bool) {
	item, ok := c.items.Get(cacheKey(province))
	if !ok {
		return 0, false, false
	}
	return item.rate, item.found, true
}

func (c *taxRateCache) Set(province string, rate float64, found bool) {
	c.items.Set(cacheKey(province), taxRateLookup{rate: rate, found: found}, c.ttl())
}

func (c *taxRateCache) Invalidate() {
	c.items.Purge()
}

func (c *taxRateCache) ttl() time.Duration {
	if c.runtime == nil {
		return defaultTaxRateTTL
	}
	if ttl := c.runtime.Get().TaxCacheTTL; ttl > 0 {
		return ttl
	}
	return defaultTaxRateTTL
}

func cacheKey(parts ...string) string {
	for i := range parts {
		parts[i] = strings.ToUpper(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ":")
}
