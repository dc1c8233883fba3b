package provider

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterFirstTurnIsImmediate(t *testing.T) {
	limiter := NewRateLimiter(time.Minute)
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Wait(ctx, ProviderDexScreener); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Fatal("first turn should be granted immediately")
	}
}

func TestRateLimiterEnforcesMinInterval(t *testing.T) {
	limiter := NewRateLimiter(20 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, ProviderCoinMarketCap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	if err := limiter.Wait(ctx, ProviderCoinMarketCap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("second turn granted after %v, want >= min interval", elapsed)
	}
}

func TestRateLimiterProvidersAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(time.Minute)
	ctx := context.Background()

	if err := limiter.Wait(ctx, ProviderCoinMarketCap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The other provider's first turn must not be delayed by the first
	// provider's exhausted slot.
	start := time.Now()
	if err := limiter.Wait(ctx, ProviderDexScreener); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Fatal("providers must not share a limiter")
	}
}

func TestRateLimiterSetIntervalOverride(t *testing.T) {
	limiter := NewRateLimiter(time.Minute)
	limiter.SetInterval(ProviderDexScreener, 5*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, ProviderDexScreener); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	if err := limiter.Wait(ctx, ProviderDexScreener); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("override interval not applied")
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	limiter := NewRateLimiter(time.Second)
	ctx := context.Background()
	_ = limiter.Wait(ctx, ProviderCoinMarketCap)

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(timeoutCtx, ProviderCoinMarketCap); err == nil {
		t.Fatal("expected context deadline error")
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatal("wait should stop after context cancellation")
	}
}
