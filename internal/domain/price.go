package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which upstream produced a PricePoint.
type Source string

const (
	SourceCoinMarketCap Source = "coinmarketcap"
	SourceDexCandles    Source = "dexscreener_candles"
	SourceDexHistorical Source = "dexscreener_historical"
	SourceDexCurrent    Source = "dexscreener_current"
	SourceFutureDate    Source = "future_date"
)

// PricePoint is a normalized historical price sample. Numeric fields are
// pointers: nil means the upstream did not report the value, which is not
// the same as zero. A point with Source == SourceFutureDate carries no
// numeric data at all.
type PricePoint struct {
	PriceUSD     *decimal.Decimal `json:"price_usd"`
	PriceNative  *decimal.Decimal `json:"price_native"`
	LiquidityUSD *decimal.Decimal `json:"liquidity_usd"`
	Volume24h    *decimal.Decimal `json:"volume_24h"`
	Timestamp    time.Time        `json:"timestamp"`
	Source       Source           `json:"source"`
}

// FuturePricePoint marks a target time that has not been reached yet.
func FuturePricePoint(target time.Time) *PricePoint {
	return &PricePoint{
		Timestamp: target.UTC(),
		Source:    SourceFutureDate,
	}
}

// Timeframe is a symbolic offset from the mention time. The label is part of
// the price-cache key; the absolute instant it resolves to is not.
type Timeframe struct {
	Label  string
	Offset time.Duration
}

const (
	LabelFirstMention = "first_mention"
	LabelPost24h      = "post_24h"
	LabelPost7d       = "post_7d"
	LabelPost30d      = "post_30d"
)

// Timeframes lists the offsets an analysis resolves, in order.
var Timeframes = []Timeframe{
	{Label: LabelFirstMention, Offset: 0},
	{Label: LabelPost24h, Offset: 24 * time.Hour},
	{Label: LabelPost7d, Offset: 7 * 24 * time.Hour},
	{Label: LabelPost30d, Offset: 30 * 24 * time.Hour},
}

// AdhocLabel is the timeframe label for an on-demand lookup at target. The
// mention timeframes pair a fixed label with a fixed instant; an on-demand
// target moves with the clock, so the label folds in the hour. A repeated
// lookup within the hour reuses the cached point, and the next hour resolves
// fresh.
func AdhocLabel(target time.Time) string {
	return "adhoc_" + target.UTC().Truncate(time.Hour).Format("2006-01-02T15")
}

// Dec is a convenience constructor for optional decimal fields.
func Dec(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// DecFromFloat converts a float64 into an optional decimal field.
func DecFromFloat(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
