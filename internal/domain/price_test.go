package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFuturePricePointHasNoNumericFields(t *testing.T) {
	t.Parallel()

	target := time.Date(2031, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	p := FuturePricePoint(target)

	if p.Source != SourceFutureDate {
		t.Fatalf("expected future_date source, got %s", p.Source)
	}
	if p.PriceUSD != nil || p.PriceNative != nil || p.LiquidityUSD != nil || p.Volume24h != nil {
		t.Fatalf("future point must carry no numeric data: %+v", p)
	}
	if p.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not normalized to UTC: %v", p.Timestamp)
	}
	if !p.Timestamp.Equal(target) {
		t.Fatalf("timestamp changed: %v != %v", p.Timestamp, target)
	}
}

func TestPricePointJSONRoundTrip(t *testing.T) {
	t.Parallel()

	price := decimal.RequireFromString("0.000001234567891")
	liq := decimal.RequireFromString("98543.21")
	p := &PricePoint{
		PriceUSD:     &price,
		PriceNative:  &price,
		LiquidityUSD: &liq,
		Timestamp:    time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Source:       SourceDexHistorical,
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got PricePoint
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Source != p.Source {
		t.Fatalf("source lost: %s", got.Source)
	}
	if !got.Timestamp.Equal(p.Timestamp) {
		t.Fatalf("timestamp lost: %v", got.Timestamp)
	}
	if got.PriceUSD == nil || !got.PriceUSD.Equal(price) {
		t.Fatalf("price_usd not preserved: %v", got.PriceUSD)
	}
	if got.LiquidityUSD == nil || !got.LiquidityUSD.Equal(liq) {
		t.Fatalf("liquidity_usd not preserved: %v", got.LiquidityUSD)
	}
	if got.Volume24h != nil {
		t.Fatalf("nil field became %v after round trip", got.Volume24h)
	}
}

func TestAdhocLabelMovesWithTheHour(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	if AdhocLabel(base) != AdhocLabel(base.Add(59*time.Minute)) {
		t.Fatal("lookups within one hour must share a label")
	}
	if AdhocLabel(base) == AdhocLabel(base.Add(time.Hour)) {
		t.Fatal("lookups an hour apart must not share a label")
	}

	// Zone handling: the same instant in another zone is the same label.
	cest := base.In(time.FixedZone("CEST", 2*3600))
	if AdhocLabel(base) != AdhocLabel(cest) {
		t.Fatalf("label not normalized to UTC: %q vs %q", AdhocLabel(base), AdhocLabel(cest))
	}

	for _, tf := range Timeframes {
		if AdhocLabel(base) == tf.Label {
			t.Fatalf("adhoc label collides with mention timeframe %q", tf.Label)
		}
	}
}

func TestTimeframesOrderedByOffset(t *testing.T) {
	t.Parallel()

	if Timeframes[0].Label != LabelFirstMention || Timeframes[0].Offset != 0 {
		t.Fatalf("first timeframe must be the mention itself: %+v", Timeframes[0])
	}
	for i := 1; i < len(Timeframes); i++ {
		if Timeframes[i].Offset <= Timeframes[i-1].Offset {
			t.Fatalf("timeframes out of order at %d: %+v", i, Timeframes)
		}
	}
}
