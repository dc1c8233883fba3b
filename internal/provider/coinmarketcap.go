package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kolscope/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

const cmcBaseURL = "https://pro-api.coinmarketcap.com/v1"

// Redis TTL for the symbol -> asset id mapping. The mapping is effectively
// static, a day keeps repeated runs from burning map-endpoint credits.
const cmcIDCacheTTL = 24 * time.Hour

// RedisClient is the narrow slice of go-redis the providers use.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// CMCClient queries the CoinMarketCap pro API. Every method fails soft: an
// upstream or configuration problem is logged and surfaces as "no data" so
// the resolver can move on to the next source.
type CMCClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
	redis   RedisClient
}

// NewCMCClient creates a client. A missing API key is reported once, here;
// afterwards every call degrades to "no data" without hitting the network.
func NewCMCClient(apiKey string, tracer trace.Tracer, limiter *RateLimiter, redisClient RedisClient) *CMCClient {
	if apiKey == "" {
		log.Println("CMC_API_KEY not set, CoinMarketCap lookups disabled")
	}
	return &CMCClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: cmcBaseURL,
		apiKey:  apiKey,
		tracer:  tracer,
		limiter: limiter,
		redis:   redisClient,
	}
}

// SearchToken maps a symbol to its CoinMarketCap asset entry, first match
// wins. Returns nil when the key is missing, the symbol is unknown, or the
// call fails.
func (c *CMCClient) SearchToken(ctx context.Context, symbol string) *domain.CMCToken {
	_, span := c.tracer.Start(ctx, "cmc.search-token")
	defer span.End()

	if c.apiKey == "" {
		return nil
	}

	if tok := c.cachedToken(ctx, symbol); tok != nil {
		return tok
	}

	reqURL := fmt.Sprintf("%s/cryptocurrency/map?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		log.Printf("cmc search %s: %v", symbol, err)
		return nil
	}

	var payload struct {
		Data []domain.CMCToken `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("cmc search %s: decode response: %v", symbol, err)
		return nil
	}
	if len(payload.Data) == 0 {
		log.Printf("cmc search %s: symbol not listed", symbol)
		return nil
	}

	tok := payload.Data[0]
	c.cacheToken(ctx, symbol, &tok)
	return &tok
}

// HistoricalPrice fetches the daily OHLCV quote covering target and
// normalizes its close. Returns nil when CoinMarketCap has no data for the
// asset around that time.
func (c *CMCClient) HistoricalPrice(ctx context.Context, tokenID int64, target time.Time) *domain.PricePoint {
	_, span := c.tracer.Start(ctx, "cmc.historical-price")
	defer span.End()

	if c.apiKey == "" {
		return nil
	}

	target = target.UTC()
	unix := target.Unix()
	reqURL := fmt.Sprintf("%s/cryptocurrency/ohlcv/historical?id=%d&time_start=%d&time_end=%d&convert=USD&interval=1d",
		c.baseURL, tokenID, unix, unix)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		log.Printf("cmc historical id=%d: %v", tokenID, err)
		return nil
	}

	var payload struct {
		Data map[string]struct {
			Quotes []cmcOHLCVQuote `json:"quotes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("cmc historical id=%d: decode response: %v", tokenID, err)
		return nil
	}

	entry, ok := payload.Data[strconv.FormatInt(tokenID, 10)]
	if !ok || len(entry.Quotes) == 0 {
		return nil
	}
	quote := entry.Quotes[0]
	if quote.Close == nil {
		log.Printf("cmc historical id=%d: quote has no close", tokenID)
		return nil
	}

	return &domain.PricePoint{
		PriceUSD:  quote.Close,
		Volume24h: quote.Volume,
		Timestamp: target,
		Source:    domain.SourceCoinMarketCap,
	}
}

// CurrentPrice fetches the latest USD quote for an asset id.
func (c *CMCClient) CurrentPrice(ctx context.Context, tokenID int64) *domain.PricePoint {
	_, span := c.tracer.Start(ctx, "cmc.current-price")
	defer span.End()

	if c.apiKey == "" {
		return nil
	}

	reqURL := fmt.Sprintf("%s/cryptocurrency/quotes/latest?id=%d&convert=USD", c.baseURL, tokenID)
	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		log.Printf("cmc current id=%d: %v", tokenID, err)
		return nil
	}

	var payload struct {
		Data map[string]struct {
			Quote map[string]struct {
				Price     *decimal.Decimal `json:"price"`
				Volume24h *decimal.Decimal `json:"volume_24h"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("cmc current id=%d: decode response: %v", tokenID, err)
		return nil
	}

	entry, ok := payload.Data[strconv.FormatInt(tokenID, 10)]
	if !ok {
		return nil
	}
	usd, ok := entry.Quote["USD"]
	if !ok || usd.Price == nil {
		return nil
	}

	return &domain.PricePoint{
		PriceUSD:  usd.Price,
		Volume24h: usd.Volume24h,
		Timestamp: time.Now().UTC(),
		Source:    domain.SourceCoinMarketCap,
	}
}

// cmcOHLCVQuote carries the fields the analysis uses from a historical
// OHLCV row.
type cmcOHLCVQuote struct {
	Close  *decimal.Decimal `json:"close"`
	Volume *decimal.Decimal `json:"volume"`
}

func (c *CMCClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, ProviderCoinMarketCap); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coinmarketcap API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func (c *CMCClient) cachedToken(ctx context.Context, symbol string) *domain.CMCToken {
	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, "cmc:token:"+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cmc token cache read: %v", err)
		}
		return nil
	}
	var tok domain.CMCToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil
	}
	return &tok
}

func (c *CMCClient) cacheToken(ctx context.Context, symbol string, tok *domain.CMCToken) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, "cmc:token:"+symbol, data, cmcIDCacheTTL).Err(); err != nil {
		log.Printf("cmc token cache write: %v", err)
	}
}
