package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/user/soldprice-service/internal/adapter/chromedp_browser"
	"github.com/user/soldprice-service/internal/adapter/htmlpage"
	"github.com/user/soldprice-service/internal/adapter/postgres"
	redis_adapter "github.com/user/soldprice-service/internal/adapter/redis"
	"github.com/user/soldprice-service/internal/adapter/retrying"
	"github.com/user/soldprice-service/internal/catalog"
	"github.com/user/soldprice-service/internal/delivery/http/handler"
	"github.com/user/soldprice-service/internal/delivery/http/router"
	"github.com/user/soldprice-service/internal/lifecycle"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/internal/usecase"
	"github.com/user/soldprice-service/pkg/config"
	"github.com/user/soldprice-service/pkg/logger"
	"github.com/user/soldprice-service/pkg/metrics"
	"github.com/user/soldprice-service/pkg/money"
)

// runAll wires the service. With scrape false only the read API runs.
func runAll(ctx context.Context, envFile string, scrape bool) error {
	// --- Configuration ---
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	currency, err := money.LookupCurrency(cfg.Currency)
	if err != nil {
		return err
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- PostgreSQL ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: cfg.PostgresURL(), MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()
	store := postgres.NewStore(pool)
	log.Info("PostgreSQL connection pool established")

	// --- Redis ---
	var cache repository.StatsCacheRepository = redis_adapter.NopStatsCache{}
	deps := map[string]usecase.Pinger{"postgres": store}
	if cfg.RedisAddr != "" {
		rdb, err := redis_adapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		statsCache := redis_adapter.NewStatsCacheRepo(rdb, cfg.StatsCacheTTL())
		cache = statsCache
		deps["redis"] = statsCache
		log.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set, statistics are not cached")
	}

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(
		usecase.NewCatalogQuery(store),
		usecase.NewStatsService(store, cache, currency, m, log),
		usecase.NewHealthChecker(deps),
		log,
	)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, m, reg, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	tasks := []lifecycle.Task{lifecycle.HTTPServer(server, cfg.ShutdownTimeout(), log)}

	// --- Scraper ---
	if scrape {
		scraper, err := newScraper(cfg, currency, store, cache, m, log)
		if err != nil {
			return err
		}
		tasks = append(tasks, lifecycle.Task{Name: "scraper", Run: scraper.Run})
	}

	return lifecycle.Run(ctx, log, tasks...)
}

func newScraper(
	cfg *config.Config,
	currency *money.Currency,
	store *postgres.Store,
	cache repository.StatsCacheRepository,
	m *metrics.Metrics,
	log *zap.Logger,
) (*usecase.Scraper, error) {
	cat, err := catalog.Load(cfg.CatalogPaths())
	if err != nil {
		return nil, err
	}

	extractor, err := usecase.NewExtractor(usecase.ExtractorConfig{
		BaseURL:   cfg.MarketplaceURL,
		Currency:  currency,
		Selectors: usecase.DefaultSelectors(),
		Retry:     retrying.Policy{Attempts: cfg.LookupAttempts, Delay: cfg.LookupDelay()},
		MaxPages:  usecase.MaxPages,
	}, log)
	if err != nil {
		return nil, err
	}

	sessions, err := newSessionFactory(cfg, log)
	if err != nil {
		return nil, err
	}

	return usecase.NewScraper(cat, store, store, cache, sessions, extractor, usecase.ScraperConfig{
		SleepInterval:   cfg.SleepInterval(),
		ScreenshotDir:   cfg.ScreenshotDir,
		ContinueOnError: cfg.ContinueOnError,
	}, m, log), nil
}

// newSessionFactory replays saved pages when REPLAY_DIR is set and drives a
// real browser otherwise.
func newSessionFactory(cfg *config.Config, log *zap.Logger) (repository.SessionFactory, error) {
	if cfg.ReplayDir != "" {
		site, err := htmlpage.LoadDir(cfg.ReplayDir)
		if err != nil {
			return nil, fmt.Errorf("load replay pages: %w", err)
		}
		log.Info("replaying saved pages", zap.String("dir", cfg.ReplayDir))
		return site, nil
	}
	return chromedp_browser.NewFactory(chromedp_browser.Config{
		RemoteURL:       cfg.WebDriverURL,
		ExecPath:        cfg.ChromeBin,
		PageLoadTimeout: cfg.PageLoadTimeout(),
		PageRPS:         cfg.PageRPS,
	}, log), nil
}
