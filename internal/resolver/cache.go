package resolver

import (
	"sync"

	"kolscope/internal/domain"
)

// CacheKey identifies one resolved price: the timeframe label is symbolic
// ("post_24h"), not the absolute instant it resolves to.
type CacheKey struct {
	Token       string
	PairAddress string
	Timeframe   string
}

// PriceCache memoizes resolved price points for the lifetime of one
// resolver. There is no eviction; the cache is bounded by the run size.
// Writes to the same key are idempotent, so last-write-wins is fine.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]*domain.PricePoint
}

func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[CacheKey]*domain.PricePoint)}
}

func (c *PriceCache) Get(key CacheKey) (*domain.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	point, ok := c.entries[key]
	return point, ok
}

func (c *PriceCache) Put(key CacheKey, point *domain.PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = point
}

func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
