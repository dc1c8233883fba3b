package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseToken is the traded token side of a pair.
type BaseToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// TradingPair is one token/quote market on a specific DEX and chain,
// normalized from the DexScreener search response. It is selected once per
// (token, reference-time) query and treated as read-only afterwards.
type TradingPair struct {
	PairAddress  string           `json:"pair_address"`
	ChainID      string           `json:"chain_id"`
	DexID        string           `json:"dex_id"`
	URL          string           `json:"url"`
	BaseToken    BaseToken        `json:"base_token"`
	PriceUSD     *decimal.Decimal `json:"price_usd"`
	PriceNative  *decimal.Decimal `json:"price_native"`
	LiquidityUSD *decimal.Decimal `json:"liquidity_usd"`
	Volume24h    *decimal.Decimal `json:"volume_24h"`
	MarketCap    *decimal.Decimal `json:"market_cap"`
	FDV          *decimal.Decimal `json:"fdv"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CMCToken is a CoinMarketCap asset-map entry (numeric id keyed).
type CMCToken struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
