package resolver

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"kolscope/internal/domain"
	"kolscope/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

// Pairs indexed after this much slack past the reference time still count as
// existing at that time (clock skew, indexing lag).
const pairCreationTolerance = time.Hour

// CMCProvider is the centralized-exchange side of the cascade.
type CMCProvider interface {
	SearchToken(ctx context.Context, symbol string) *domain.CMCToken
	HistoricalPrice(ctx context.Context, tokenID int64, target time.Time) *domain.PricePoint
}

// DexProvider is the decentralized-exchange side.
type DexProvider interface {
	SearchPairs(ctx context.Context, symbol string) []domain.TradingPair
	HistoricalPrice(ctx context.Context, pair *domain.TradingPair, target time.Time) *domain.PricePoint
}

// Resolver produces the best available price point for a (token, time) pair
// by walking an ordered list of sources and stopping at the first hit. It
// never fails on upstream trouble: the worst case is the pair's current spot
// price tagged as an approximation. The only error it returns is a nil pair
// context, which is a caller bug.
type Resolver struct {
	tracer trace.Tracer
	cmc    CMCProvider
	dex    DexProvider
	cache  *PriceCache
	now    func() time.Time

	inflightMu sync.Mutex
	inflight   map[CacheKey]chan struct{}

	strategies []strategy
}

type strategy func(ctx context.Context, token string, target time.Time, pair *domain.TradingPair) *domain.PricePoint

func New(tracer trace.Tracer, cmc CMCProvider, dex DexProvider) *Resolver {
	r := &Resolver{
		tracer:   tracer,
		cmc:      cmc,
		dex:      dex,
		cache:    NewPriceCache(),
		now:      time.Now,
		inflight: make(map[CacheKey]chan struct{}),
	}
	// Priority order: exact CMC history, then DexScreener history, then the
	// pair's spot fields. The last strategy always produces a point.
	r.strategies = []strategy{
		r.fromCoinMarketCap,
		r.fromDexHistory,
		r.fromSpot,
	}
	return r
}

// Resolve returns a price point for token at target. The timeframe label is
// part of the cache key so that "24h after" and "7d after" of the same pair
// do not collide even when their absolute instants are equal.
func (r *Resolver) Resolve(ctx context.Context, token string, target time.Time, label string, pair *domain.TradingPair) (*domain.PricePoint, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.resolve")
	defer span.End()

	if pair == nil {
		return nil, errors.New("resolve: nil pair context")
	}

	target = target.UTC()
	if target.After(r.now()) {
		// A real price cannot exist yet: no network, no caching.
		return domain.FuturePricePoint(target), nil
	}

	key := CacheKey{Token: token, PairAddress: pair.PairAddress, Timeframe: label}
	for {
		if point, ok := r.cache.Get(key); ok {
			return point, nil
		}
		ch, leader := r.enterInflight(key)
		if leader {
			break
		}
		// Another task is resolving this key; wait for it and re-check.
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer r.leaveInflight(key)

	point := r.lookup(ctx, token, target, pair)
	r.cache.Put(key, point)
	return point, nil
}

func (r *Resolver) lookup(ctx context.Context, token string, target time.Time, pair *domain.TradingPair) *domain.PricePoint {
	for _, s := range r.strategies {
		if point := s(ctx, token, target, pair); point != nil {
			return point
		}
	}
	// Unreachable: fromSpot never returns nil.
	return provider.CurrentPoint(pair, target)
}

func (r *Resolver) fromCoinMarketCap(ctx context.Context, token string, target time.Time, _ *domain.TradingPair) *domain.PricePoint {
	tok := r.cmc.SearchToken(ctx, token)
	if tok == nil {
		return nil
	}
	return r.cmc.HistoricalPrice(ctx, tok.ID, target)
}

func (r *Resolver) fromDexHistory(ctx context.Context, _ string, target time.Time, pair *domain.TradingPair) *domain.PricePoint {
	return r.dex.HistoricalPrice(ctx, pair, target)
}

func (r *Resolver) fromSpot(_ context.Context, token string, target time.Time, pair *domain.TradingPair) *domain.PricePoint {
	log.Printf("resolver: falling back to spot price for %s at %s", token, target.Format(time.RFC3339))
	return provider.CurrentPoint(pair, target)
}

// SelectBestPair picks the trading pair that best represents the token at
// refTime: among pairs created no later than refTime plus one hour of
// tolerance, the one with the highest USD liquidity (first encountered wins
// ties). When no pair is old enough the globally oldest pair is the closest
// available proxy. Nil when the token has no pairs at all.
func (r *Resolver) SelectBestPair(ctx context.Context, token string, refTime time.Time) *domain.TradingPair {
	ctx, span := r.tracer.Start(ctx, "resolver.select-best-pair")
	defer span.End()

	pairs := r.dex.SearchPairs(ctx, token)
	if len(pairs) == 0 {
		log.Printf("resolver: no pairs found for token %s", token)
		return nil
	}

	cutoff := refTime.UTC().Add(pairCreationTolerance)
	var valid []domain.TradingPair
	for _, pair := range pairs {
		if !pair.CreatedAt.IsZero() && !pair.CreatedAt.After(cutoff) {
			valid = append(valid, pair)
		}
	}

	if len(valid) == 0 {
		oldest := pairs[0]
		for _, pair := range pairs[1:] {
			if pairCreatedBefore(&pair, &oldest) {
				oldest = pair
			}
		}
		return &oldest
	}

	best := valid[0]
	for _, pair := range valid[1:] {
		if liquidityGreater(&pair, &best) {
			best = pair
		}
	}
	return &best
}

// pairCreatedBefore treats a missing creation time as earliest, matching the
// upstream's zero-epoch encoding of unknown ages.
func pairCreatedBefore(a, b *domain.TradingPair) bool {
	if a.CreatedAt.IsZero() {
		return !b.CreatedAt.IsZero()
	}
	if b.CreatedAt.IsZero() {
		return false
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func liquidityGreater(a, b *domain.TradingPair) bool {
	if a.LiquidityUSD == nil {
		return false
	}
	if b.LiquidityUSD == nil {
		return true
	}
	return a.LiquidityUSD.GreaterThan(*b.LiquidityUSD)
}

func (r *Resolver) enterInflight(key CacheKey) (chan struct{}, bool) {
	r.inflightMu.Lock()
	defer r.inflightMu.Unlock()
	if ch, ok := r.inflight[key]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	r.inflight[key] = ch
	return ch, true
}

func (r *Resolver) leaveInflight(key CacheKey) {
	r.inflightMu.Lock()
	defer r.inflightMu.Unlock()
	if ch, ok := r.inflight[key]; ok {
		close(ch)
		delete(r.inflight, key)
	}
}
