package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mention is one (post, token) pair handed to the analysis pipeline. The
// token symbol arrives already extracted and uppercased; PostedAt is already
// parsed from the post's timestamp.
type Mention struct {
	TweetID  string    `json:"tweet_id"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
	Token    string    `json:"token"`
}

// ImpactResult aggregates the base price point, the follow-up points, and
// the derived percentage changes for one mention. It is owned by the run
// orchestrator after creation and never mutated elsewhere.
type ImpactResult struct {
	ID           int64  `json:"id,omitempty"`
	Token        string `json:"token"`
	TokenName    string `json:"token_name,omitempty"`
	TokenAddress string `json:"token_address,omitempty"`

	TweetID   string    `json:"tweet_id"`
	Author    string    `json:"author,omitempty"`
	TweetText string    `json:"tweet_text,omitempty"`
	TweetTime time.Time `json:"tweet_time"`

	PairAddress   string           `json:"pair_address,omitempty"`
	ChainID       string           `json:"chain_id,omitempty"`
	DexID         string           `json:"dex_id,omitempty"`
	PairURL       string           `json:"pair_url,omitempty"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	FDV           *decimal.Decimal `json:"fdv,omitempty"`
	PairCreatedAt time.Time        `json:"pair_created_at,omitempty"`

	// Points holds one resolved PricePoint per timeframe label.
	Points map[string]*PricePoint `json:"points"`

	// Changes holds the percentage change per follow-up label; an
	// unavailable change is recorded as nil, never as zero.
	Changes map[string]*decimal.Decimal `json:"changes"`

	// PendingFollowups is set when at least one follow-up point was in the
	// future at analysis time and should be re-resolved later.
	PendingFollowups bool `json:"pending_followups"`

	// Err records a per-mention failure ("no pairs found"); the batch
	// carries on regardless.
	Err string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ChangeFor returns the recorded change for a follow-up label, nil when
// unavailable.
func (r *ImpactResult) ChangeFor(label string) *decimal.Decimal {
	if r.Changes == nil {
		return nil
	}
	return r.Changes[label]
}
