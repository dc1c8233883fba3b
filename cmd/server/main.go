package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kolscope/internal/bot"
	"kolscope/internal/cache"
	"kolscope/internal/config"
	"kolscope/internal/db"
	"kolscope/internal/handler"
	"kolscope/internal/job"
	"kolscope/internal/provider"
	"kolscope/internal/repository"
	"kolscope/internal/resolver"
	"kolscope/internal/service"
	"kolscope/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "kolscope/docs"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newImpactRepoFunc = repository.NewImpactRepository
	newResolverFunc   = func(tracer trace.Tracer, cfg *config.Config) service.PriceResolver {
		limiter := provider.NewRateLimiter(provider.DefaultMinInterval)
		limiter.SetInterval(provider.ProviderCoinMarketCap, cfg.CMCMinInterval)
		limiter.SetInterval(provider.ProviderDexScreener, cfg.DexMinInterval)

		cmc := provider.NewCMCClient(cfg.CMCAPIKey, tracer, limiter, cache.Client)
		dex := provider.NewDexScreenerClient(tracer, limiter)
		return resolver.New(tracer, cmc, dex)
	}
	newAnalysisServiceFunc = service.NewAnalysisService
	newFollowupJobFunc     = job.NewFollowupJob
	startFollowupJobFunc   = func(j *job.FollowupJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           KOLScope API
// @version         1.0
// @description     Token mention price-impact analysis service.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repository and run migrations
	impactRepo := newImpactRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := impactRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Create the price resolver and analysis service
	priceResolver := newResolverFunc(tracer, cfg)
	analysisService := newAnalysisServiceFunc(tracer, priceResolver, impactRepo, nil, cfg.AnalysisWorkers, cfg.HighImpactPct)

	// Start Telegram bot and hook it up as the high-impact notifier
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	if tgBot := startTelegramBotFunc(analysisService, priceResolver, cfg.TelegramChatID); tgBot != nil {
		analysisService = newAnalysisServiceFunc(tracer, priceResolver, impactRepo, tgBot, cfg.AnalysisWorkers, cfg.HighImpactPct)
	}

	// Start followup job (background goroutine, stopped by ctx cancel)
	followupJob := newFollowupJobFunc(tracer, analysisService, time.Duration(cfg.FollowupPollSecs)*time.Second, 100)
	startFollowupJobFunc(followupJob, ctx)

	// Create handlers and routes
	h := newHandlerFunc(tracer, analysisService, priceResolver)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("kolscope"))
	r.Use(handler.APIKeyAuth(os.Getenv("API_KEY")))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
