// Package impact turns pairs of resolved price points into percent moves.
package impact

import (
	"github.com/shopspring/decimal"

	"kolscope/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PercentChange reports the percent move from base to later. The second
// return is false when the change cannot be computed: a missing or
// non-positive base price, a missing later price, or a later point that is
// only a future-date placeholder.
func PercentChange(base, later *domain.PricePoint) (decimal.Decimal, bool) {
	if base == nil || base.PriceUSD == nil || !base.PriceUSD.IsPositive() {
		return decimal.Zero, false
	}
	if later == nil || later.Source == domain.SourceFutureDate || later.PriceUSD == nil {
		return decimal.Zero, false
	}
	change := later.PriceUSD.Sub(*base.PriceUSD).Div(*base.PriceUSD).Mul(hundred)
	return change, true
}

// IsHighImpact reports whether the absolute move meets the threshold,
// expressed in percentage points.
func IsHighImpact(change decimal.Decimal, threshold decimal.Decimal) bool {
	return change.Abs().GreaterThanOrEqual(threshold)
}

// Changes computes the percent move from the first-mention point to every
// later timeframe. Timeframes whose change cannot be computed map to nil.
func Changes(points map[string]*domain.PricePoint) map[string]*decimal.Decimal {
	changes := make(map[string]*decimal.Decimal, len(domain.Timeframes)-1)
	base := points[domain.LabelFirstMention]
	for _, tf := range domain.Timeframes {
		if tf.Label == domain.LabelFirstMention {
			continue
		}
		if change, ok := PercentChange(base, points[tf.Label]); ok {
			changes[tf.Label] = domain.Dec(change)
		} else {
			changes[tf.Label] = nil
		}
	}
	return changes
}
