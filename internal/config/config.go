package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string
	TelegramChatID   int64

	CMCAPIKey string

	// Minimum spacing between consecutive calls to each provider.
	CMCMinInterval time.Duration
	DexMinInterval time.Duration

	AnalysisWorkers  int
	FollowupPollSecs int
	HighImpactPct    float64
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		CMCAPIKey:        os.Getenv("CMC_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.CMCAPIKey == "" {
		log.Println("Warning: CMC_API_KEY not set, CoinMarketCap lookups disabled")
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		} else {
			log.Printf("Warning: invalid TELEGRAM_CHAT_ID=%q, alerts disabled", v)
		}
	}

	cfg.CMCMinInterval = time.Second
	if v := strings.TrimSpace(os.Getenv("CMC_MIN_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CMCMinInterval = time.Duration(n) * time.Millisecond
		}
	}

	cfg.DexMinInterval = time.Second
	if v := strings.TrimSpace(os.Getenv("DEX_MIN_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DexMinInterval = time.Duration(n) * time.Millisecond
		}
	}

	cfg.AnalysisWorkers = 4
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisWorkers = n
		}
	}

	cfg.FollowupPollSecs = 1800
	if v := strings.TrimSpace(os.Getenv("FOLLOWUP_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FollowupPollSecs = n
		}
	}

	cfg.HighImpactPct = 15
	if v := strings.TrimSpace(os.Getenv("HIGH_IMPACT_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.HighImpactPct = n
		}
	}

	return cfg
}
