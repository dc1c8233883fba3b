package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"kolscope/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubCMC struct {
	mu              sync.Mutex
	token           *domain.CMCToken
	point           *domain.PricePoint
	searchCalls     int
	historicalCalls int
	searchDelay     time.Duration
}

func (s *stubCMC) SearchToken(ctx context.Context, symbol string) *domain.CMCToken {
	s.mu.Lock()
	s.searchCalls++
	delay := s.searchDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return s.token
}

func (s *stubCMC) HistoricalPrice(ctx context.Context, tokenID int64, target time.Time) *domain.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historicalCalls++
	return s.point
}

type stubDex struct {
	mu              sync.Mutex
	pairs           []domain.TradingPair
	point           *domain.PricePoint
	searchCalls     int
	historicalCalls int
}

func (s *stubDex) SearchPairs(ctx context.Context, symbol string) []domain.TradingPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	return s.pairs
}

func (s *stubDex) HistoricalPrice(ctx context.Context, pair *domain.TradingPair, target time.Time) *domain.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historicalCalls++
	return s.point
}

func fixedNow() time.Time {
	return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
}

func newTestResolver(cmc *stubCMC, dex *stubDex) *Resolver {
	r := New(testTracer, cmc, dex)
	r.now = fixedNow
	return r
}

func spotPair() *domain.TradingPair {
	return &domain.TradingPair{
		PairAddress:  "0xPAIR",
		ChainID:      "solana",
		PriceUSD:     domain.DecFromFloat(0.5),
		LiquidityUSD: domain.DecFromFloat(10000),
	}
}

func TestResolveFutureDateSkipsNetworkAndCache(t *testing.T) {
	t.Parallel()

	cmc := &stubCMC{token: &domain.CMCToken{ID: 1}}
	dex := &stubDex{}
	r := newTestResolver(cmc, dex)

	target := fixedNow().Add(time.Minute)
	point, err := r.Resolve(context.Background(), "WIF", target, domain.LabelPost24h, spotPair())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.Source != domain.SourceFutureDate {
		t.Fatalf("expected future_date, got %s", point.Source)
	}
	if point.PriceUSD != nil || point.PriceNative != nil || point.LiquidityUSD != nil || point.Volume24h != nil {
		t.Fatalf("future point must have nil numerics: %+v", point)
	}
	if cmc.searchCalls != 0 || dex.historicalCalls != 0 {
		t.Fatal("future dates must not reach any provider")
	}
	if r.cache.Len() != 0 {
		t.Fatal("future points must not be cached")
	}
}

func TestResolveNilPairIsAnError(t *testing.T) {
	t.Parallel()

	r := newTestResolver(&stubCMC{}, &stubDex{})
	if _, err := r.Resolve(context.Background(), "WIF", fixedNow().Add(-time.Hour), domain.LabelPost24h, nil); err == nil {
		t.Fatal("expected error for nil pair context")
	}
}

func TestResolveCMCSuccessShortCircuitsDex(t *testing.T) {
	t.Parallel()

	cmcPoint := &domain.PricePoint{
		PriceUSD:  domain.DecFromFloat(1.5),
		Timestamp: fixedNow().Add(-24 * time.Hour),
		Source:    domain.SourceCoinMarketCap,
	}
	cmc := &stubCMC{token: &domain.CMCToken{ID: 42}, point: cmcPoint}
	dex := &stubDex{point: &domain.PricePoint{Source: domain.SourceDexHistorical}}
	r := newTestResolver(cmc, dex)

	point, err := r.Resolve(context.Background(), "WIF", fixedNow().Add(-24*time.Hour), domain.LabelPost24h, spotPair())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.Source != domain.SourceCoinMarketCap {
		t.Fatalf("expected the CMC point, got %s", point.Source)
	}
	if dex.historicalCalls != 0 {
		t.Fatal("dex must not be queried when CMC succeeds")
	}
}

func TestResolveFallsBackThroughCascade(t *testing.T) {
	t.Parallel()

	// CMC knows nothing, DexScreener history knows nothing: the spot
	// fields of the pair context are the answer of last resort.
	cmc := &stubCMC{}
	dex := &stubDex{}
	r := newTestResolver(cmc, dex)

	target := fixedNow().Add(-48 * time.Hour)
	point, err := r.Resolve(context.Background(), "WIF", target, domain.LabelPost24h, spotPair())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dex.historicalCalls != 1 {
		t.Fatalf("dex historical must be tried exactly once, got %d", dex.historicalCalls)
	}
	if point.Source != domain.SourceDexCurrent {
		t.Fatalf("expected spot fallback, got %s", point.Source)
	}
	if !point.Timestamp.Equal(target) {
		t.Fatalf("spot fallback must be stamped with the target: %v", point.Timestamp)
	}
	if point.PriceUSD == nil || point.PriceUSD.String() != "0.5" {
		t.Fatalf("spot price not carried over: %v", point.PriceUSD)
	}
}

func TestResolveCachesByTokenPairAndLabel(t *testing.T) {
	t.Parallel()

	cmc := &stubCMC{
		token: &domain.CMCToken{ID: 42},
		point: &domain.PricePoint{PriceUSD: domain.DecFromFloat(2), Source: domain.SourceCoinMarketCap},
	}
	r := newTestResolver(cmc, &stubDex{})
	pair := spotPair()
	target := fixedNow().Add(-24 * time.Hour)

	first, err := r.Resolve(context.Background(), "WIF", target, domain.LabelPost24h, pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve(context.Background(), "WIF", target, domain.LabelPost24h, pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("second call must return the cached point")
	}
	if cmc.searchCalls != 1 || cmc.historicalCalls != 1 {
		t.Fatalf("cache hit must not reach the provider: %d/%d calls", cmc.searchCalls, cmc.historicalCalls)
	}

	// A different label is a different key even at the same instant.
	if _, err := r.Resolve(context.Background(), "WIF", target, domain.LabelPost7d, pair); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmc.searchCalls != 2 {
		t.Fatalf("distinct labels must resolve independently, got %d searches", cmc.searchCalls)
	}
}

func TestResolveAdhocLabelsDoNotPinStalePoints(t *testing.T) {
	t.Parallel()

	cmc := &stubCMC{
		token: &domain.CMCToken{ID: 42},
		point: &domain.PricePoint{PriceUSD: domain.DecFromFloat(2), Source: domain.SourceCoinMarketCap},
	}
	r := newTestResolver(cmc, &stubDex{})
	pair := spotPair()

	first := fixedNow().Add(-3 * time.Hour)
	later := fixedNow().Add(-1 * time.Hour)

	if _, err := r.Resolve(context.Background(), "WIF", first, domain.AdhocLabel(first), pair); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "WIF", later, domain.AdhocLabel(later), pair); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cmc.searchCalls != 2 {
		t.Fatalf("an on-demand lookup at a later hour must resolve fresh, got %d searches", cmc.searchCalls)
	}
}

func TestResolveSingleFlightsConcurrentLookups(t *testing.T) {
	t.Parallel()

	cmc := &stubCMC{
		token:       &domain.CMCToken{ID: 42},
		point:       &domain.PricePoint{PriceUSD: domain.DecFromFloat(2), Source: domain.SourceCoinMarketCap},
		searchDelay: 20 * time.Millisecond,
	}
	r := newTestResolver(cmc, &stubDex{})
	pair := spotPair()
	target := fixedNow().Add(-24 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "WIF", target, domain.LabelPost24h, pair); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if cmc.searchCalls != 1 {
		t.Fatalf("expected a single upstream lookup, got %d", cmc.searchCalls)
	}
}

func TestSelectBestPairPrefersLiquidityAmongOldEnough(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	dex := &stubDex{pairs: []domain.TradingPair{
		{PairAddress: "0xBIG", LiquidityUSD: domain.DecFromFloat(1000000), CreatedAt: ref.Add(2 * time.Hour)},
		{PairAddress: "0xMID", LiquidityUSD: domain.DecFromFloat(10000), CreatedAt: ref.Add(-30 * time.Minute)},
		{PairAddress: "0xOLD", LiquidityUSD: domain.DecFromFloat(500), CreatedAt: ref.Add(-2 * time.Hour)},
	}}
	r := newTestResolver(&stubCMC{}, dex)

	best := r.SelectBestPair(context.Background(), "WIF", ref)
	if best == nil || best.PairAddress != "0xMID" {
		t.Fatalf("expected 0xMID (highest liquidity created before cutoff), got %+v", best)
	}
}

func TestSelectBestPairWithinToleranceWindow(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	dex := &stubDex{pairs: []domain.TradingPair{
		// Created 40 minutes after the reference: inside the 1h tolerance.
		{PairAddress: "0xSKEW", LiquidityUSD: domain.DecFromFloat(100), CreatedAt: ref.Add(40 * time.Minute)},
	}}
	r := newTestResolver(&stubCMC{}, dex)

	best := r.SelectBestPair(context.Background(), "WIF", ref)
	if best == nil || best.PairAddress != "0xSKEW" {
		t.Fatalf("tolerance window not applied: %+v", best)
	}
}

func TestSelectBestPairFallsBackToOldest(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	dex := &stubDex{pairs: []domain.TradingPair{
		{PairAddress: "0xNEWER", LiquidityUSD: domain.DecFromFloat(1000000), CreatedAt: ref.Add(72 * time.Hour)},
		{PairAddress: "0xNEW", LiquidityUSD: domain.DecFromFloat(50), CreatedAt: ref.Add(24 * time.Hour)},
	}}
	r := newTestResolver(&stubCMC{}, dex)

	best := r.SelectBestPair(context.Background(), "WIF", ref)
	if best == nil || best.PairAddress != "0xNEW" {
		t.Fatalf("expected the oldest pair as fallback, got %+v", best)
	}
}

func TestSelectBestPairNoPairs(t *testing.T) {
	t.Parallel()

	r := newTestResolver(&stubCMC{}, &stubDex{})
	if best := r.SelectBestPair(context.Background(), "NOPE", fixedNow()); best != nil {
		t.Fatalf("expected nil for unknown token, got %+v", best)
	}
}

func TestPriceCachePutGet(t *testing.T) {
	t.Parallel()

	cache := NewPriceCache()
	key := CacheKey{Token: "WIF", PairAddress: "0xPAIR", Timeframe: domain.LabelPost24h}

	if _, ok := cache.Get(key); ok {
		t.Fatal("empty cache must miss")
	}
	point := &domain.PricePoint{Source: domain.SourceDexCurrent}
	cache.Put(key, point)

	got, ok := cache.Get(key)
	if !ok || got != point {
		t.Fatalf("cache returned %+v", got)
	}
	if cache.Len() != 1 {
		t.Fatalf("unexpected cache size %d", cache.Len())
	}
}
