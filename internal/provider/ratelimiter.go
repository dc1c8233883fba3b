package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Provider names used as rate-limiter keys.
const (
	ProviderCoinMarketCap = "coinmarketcap"
	ProviderDexScreener   = "dexscreener"
)

// DefaultMinInterval is the spacing applied to providers without an
// explicit override.
const DefaultMinInterval = time.Second

// RateLimiter spaces requests per upstream provider: no turn is granted less
// than the provider's minimum interval after the previous one. Each provider
// gets its own limiter, so waiting on one never serializes the others. The
// last-grant bookkeeping lives inside rate.Limiter, which reserves the slot
// atomically with granting it.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	intervals map[string]time.Duration
	fallback  time.Duration
}

// NewRateLimiter creates a registry with the given default minimum interval
// between requests to the same provider.
func NewRateLimiter(defaultInterval time.Duration) *RateLimiter {
	if defaultInterval <= 0 {
		defaultInterval = DefaultMinInterval
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		intervals: make(map[string]time.Duration),
		fallback:  defaultInterval,
	}
}

// SetInterval overrides the minimum interval for one provider. It must be
// called before the provider's first Wait.
func (r *RateLimiter) SetInterval(provider string, interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals[provider] = interval
}

// Wait blocks until the provider's turn is granted or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, provider string) error {
	return r.limiterFor(provider).Wait(ctx)
}

func (r *RateLimiter) limiterFor(provider string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[provider]; ok {
		return l
	}
	interval, ok := r.intervals[provider]
	if !ok {
		interval = r.fallback
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	r.limiters[provider] = l
	return l
}
