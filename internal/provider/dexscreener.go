package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"kolscope/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

const dexScreenerBaseURL = "https://api.dexscreener.com/latest/dex"

// A candle or history sample only stands in for the target time when it is
// within this window of it.
const historicalWindow = 12 * time.Hour

// DexScreenerClient queries the DexScreener indexer. Like the CMC client it
// fails soft everywhere: upstream trouble is logged and reported as absent.
type DexScreenerClient struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

func NewDexScreenerClient(tracer trace.Tracer, limiter *RateLimiter) *DexScreenerClient {
	return &DexScreenerClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: dexScreenerBaseURL,
		tracer:  tracer,
		limiter: limiter,
	}
}

// SearchPairs returns all pairs trading the symbol, highest USD liquidity
// first. Empty on any failure.
func (c *DexScreenerClient) SearchPairs(ctx context.Context, symbol string) []domain.TradingPair {
	_, span := c.tracer.Start(ctx, "dexscreener.search-pairs")
	defer span.End()

	reqURL := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(symbol))
	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		log.Printf("dexscreener search %s: %v", symbol, err)
		return nil
	}

	var payload struct {
		Pairs []rawPair `json:"pairs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("dexscreener search %s: decode response: %v", symbol, err)
		return nil
	}

	pairs := make([]domain.TradingPair, 0, len(payload.Pairs))
	for _, rp := range payload.Pairs {
		pairs = append(pairs, rp.normalize())
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return liquidityOf(&pairs[i]).GreaterThan(liquidityOf(&pairs[j]))
	})
	return pairs
}

// HistoricalPrice finds the sample closest to target, trying hourly candles
// first and the raw price history second. Nil when neither endpoint has a
// sample within the 12h window.
func (c *DexScreenerClient) HistoricalPrice(ctx context.Context, pair *domain.TradingPair, target time.Time) *domain.PricePoint {
	ctx, span := c.tracer.Start(ctx, "dexscreener.historical-price")
	defer span.End()

	target = target.UTC()
	if p := c.candlePoint(ctx, pair, target); p != nil {
		return p
	}
	return c.historyPoint(ctx, pair, target)
}

// CurrentPoint normalizes the pair's known spot fields into a PricePoint
// stamped with the target time. The source marks it as an approximation, not
// a measured historical sample.
func CurrentPoint(pair *domain.TradingPair, target time.Time) *domain.PricePoint {
	return &domain.PricePoint{
		PriceUSD:     pair.PriceUSD,
		PriceNative:  pair.PriceNative,
		LiquidityUSD: pair.LiquidityUSD,
		Volume24h:    pair.Volume24h,
		Timestamp:    target.UTC(),
		Source:       domain.SourceDexCurrent,
	}
}

func (c *DexScreenerClient) candlePoint(ctx context.Context, pair *domain.TradingPair, target time.Time) *domain.PricePoint {
	from := target.Add(-historicalWindow).UnixMilli()
	to := target.Add(historicalWindow).UnixMilli()
	reqURL := fmt.Sprintf("%s/pairs/%s/%s/candles?from=%d&to=%d&res=1H",
		c.baseURL, pair.ChainID, pair.PairAddress, from, to)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		log.Printf("dexscreener candles %s: %v", pair.PairAddress, err)
		return nil
	}

	var payload struct {
		Data []struct {
			Timestamp int64            `json:"timestamp"`
			Close     *decimal.Decimal `json:"close"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("dexscreener candles %s: decode response: %v", pair.PairAddress, err)
		return nil
	}

	bestIdx := -1
	var bestDelta time.Duration
	for i, candle := range payload.Data {
		delta := absDelta(time.UnixMilli(candle.Timestamp).UTC(), target)
		if bestIdx < 0 || delta < bestDelta {
			bestIdx = i
			bestDelta = delta
		}
	}
	if bestIdx < 0 || bestDelta > historicalWindow {
		return nil
	}
	closest := payload.Data[bestIdx]
	if closest.Close == nil {
		return nil
	}

	// Candle closes are quoted in USD, so the native price is the same
	// figure; liquidity and volume come from the pair context.
	return &domain.PricePoint{
		PriceUSD:     closest.Close,
		PriceNative:  closest.Close,
		LiquidityUSD: pair.LiquidityUSD,
		Volume24h:    pair.Volume24h,
		Timestamp:    time.UnixMilli(closest.Timestamp).UTC(),
		Source:       domain.SourceDexCandles,
	}
}

func (c *DexScreenerClient) historyPoint(ctx context.Context, pair *domain.TradingPair, target time.Time) *domain.PricePoint {
	reqURL := fmt.Sprintf("%s/pairs/%s/%s/history", c.baseURL, pair.ChainID, pair.PairAddress)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		log.Printf("dexscreener history %s: %v", pair.PairAddress, err)
		return nil
	}

	var payload struct {
		Data []struct {
			Timestamp    int64            `json:"timestamp"`
			PriceUSD     *decimal.Decimal `json:"priceUsd"`
			PriceNative  *decimal.Decimal `json:"priceNative"`
			LiquidityUSD *decimal.Decimal `json:"liquidityUsd"`
			VolumeUSD    *decimal.Decimal `json:"volumeUsd"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("dexscreener history %s: decode response: %v", pair.PairAddress, err)
		return nil
	}

	bestIdx := -1
	var bestDelta time.Duration
	for i, sample := range payload.Data {
		delta := absDelta(time.UnixMilli(sample.Timestamp).UTC(), target)
		if bestIdx < 0 || delta < bestDelta {
			bestIdx = i
			bestDelta = delta
		}
	}
	if bestIdx < 0 || bestDelta > historicalWindow {
		return nil
	}
	closest := payload.Data[bestIdx]

	return &domain.PricePoint{
		PriceUSD:     closest.PriceUSD,
		PriceNative:  closest.PriceNative,
		LiquidityUSD: closest.LiquidityUSD,
		Volume24h:    closest.VolumeUSD,
		Timestamp:    time.UnixMilli(closest.Timestamp).UTC(),
		Source:       domain.SourceDexHistorical,
	}
}

func (c *DexScreenerClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, ProviderDexScreener); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dexscreener API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// rawPair mirrors the DexScreener search response shape.
type rawPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	URL         string `json:"url"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceNative *decimal.Decimal `json:"priceNative"`
	PriceUSD    *decimal.Decimal `json:"priceUsd"`
	Liquidity   struct {
		USD *decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 *decimal.Decimal `json:"h24"`
	} `json:"volume"`
	FDV           *decimal.Decimal `json:"fdv"`
	MarketCap     *decimal.Decimal `json:"marketCap"`
	PairCreatedAt int64            `json:"pairCreatedAt"`
}

func (rp rawPair) normalize() domain.TradingPair {
	pair := domain.TradingPair{
		PairAddress: rp.PairAddress,
		ChainID:     rp.ChainID,
		DexID:       rp.DexID,
		URL:         rp.URL,
		BaseToken: domain.BaseToken{
			Address: rp.BaseToken.Address,
			Name:    rp.BaseToken.Name,
			Symbol:  rp.BaseToken.Symbol,
		},
		PriceUSD:     rp.PriceUSD,
		PriceNative:  rp.PriceNative,
		LiquidityUSD: rp.Liquidity.USD,
		Volume24h:    rp.Volume.H24,
		MarketCap:    rp.MarketCap,
		FDV:          rp.FDV,
	}
	if rp.PairCreatedAt > 0 {
		pair.CreatedAt = time.UnixMilli(rp.PairCreatedAt).UTC()
	}
	return pair
}

func liquidityOf(pair *domain.TradingPair) decimal.Decimal {
	if pair.LiquidityUSD == nil {
		return decimal.Zero
	}
	return *pair.LiquidityUSD
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
