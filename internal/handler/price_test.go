package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kolscope/internal/domain"
)

func TestGetPriceUnknownToken(t *testing.T) {
	h := newTestHandler(&fakeResolver{}, &fakeImpactRepo{})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/price/NOPE", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetPriceInvalidTimestamp(t *testing.T) {
	h := newTestHandler(&fakeResolver{pair: &domain.TradingPair{PairAddress: "0xPAIR"}}, &fakeImpactRepo{})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/price/WIF?at=yesterday", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPriceResolvesAtInstant(t *testing.T) {
	resolver := &fakeResolver{
		pair:  &domain.TradingPair{PairAddress: "0xPAIR", ChainID: "solana"},
		point: &domain.PricePoint{PriceUSD: domain.DecFromFloat(2.5), Source: domain.SourceCoinMarketCap},
	}
	h := newTestHandler(resolver, &fakeImpactRepo{})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/price/wif?at=2025-04-01T12:00:00Z", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	if !resolver.lastTarget.Equal(want) {
		t.Fatalf("resolved at %v, want %v", resolver.lastTarget, want)
	}

	var resp struct {
		Symbol string             `json:"symbol"`
		Price  *domain.PricePoint `json:"price"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Symbol != "WIF" {
		t.Fatalf("symbol not uppercased: %s", resp.Symbol)
	}
	if resp.Price == nil || resp.Price.Source != domain.SourceCoinMarketCap {
		t.Fatalf("unexpected price: %+v", resp.Price)
	}
}

func TestGetPriceDistinctInstantsResolveIndependently(t *testing.T) {
	resolver := &fakeResolver{pair: &domain.TradingPair{PairAddress: "0xPAIR"}}
	h := newTestHandler(resolver, &fakeImpactRepo{})
	r := newTestRouter(h)

	for _, at := range []string{
		"2025-04-01T12:00:00Z",
		"2025-04-01T12:30:00Z",
		"2025-04-02T09:00:00Z",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/price/WIF?at="+at, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("at=%s: expected 200, got %d", at, w.Code)
		}
	}

	if len(resolver.labels) != 3 {
		t.Fatalf("expected 3 resolves, got %d", len(resolver.labels))
	}
	// Same hour shares a cache slot; a different hour must not.
	if resolver.labels[0] != resolver.labels[1] {
		t.Fatalf("same-hour lookups must share a label: %q vs %q", resolver.labels[0], resolver.labels[1])
	}
	if resolver.labels[0] == resolver.labels[2] {
		t.Fatalf("lookups an hour apart must not share a label: %q", resolver.labels[2])
	}
}
