package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"birr-rate-service/internal/adapter/cache"
	"birr-rate-service/internal/adapter/events"
	httpRouter "birr-rate-service/internal/adapter/http"
	"birr-rate-service/internal/adapter/repository"
	"birr-rate-service/internal/adapter/repository/postgres"
	"birr-rate-service/internal/adapter/scrape"
	"birr-rate-service/internal/adapter/source"
	"birr-rate-service/internal/config"
	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/internal/metrics"
	"birr-rate-service/internal/service"
	"birr-rate-service/pkg/logger"
)

func main() {
	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	log.Info("Starting birr rate service")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log = logger.NewLogger(cfg.LogLevel)

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()

	rateCache, closeCache := newRateCache(ctx, cfg, log)
	defer closeCache()

	rateService := service.NewRateService(rateCache, service.Options{
		Windows: map[model.RateKind]time.Duration{
			model.Official: cfg.Cache.OfficialWindow,
			model.Parallel: cfg.Cache.ParallelWindow,
			model.NBE:      cfg.Cache.NBEWindow,
		},
		Priorities: map[model.RateKind][]string{
			model.Official: cfg.Sources.OfficialPriority,
			model.Parallel: cfg.Sources.ParallelPriority,
			model.NBE:      cfg.Sources.NBEPriority,
		},
		ChainTimeout:    cfg.Cache.ChainTimeout,
		ResponseTimeout: cfg.Cache.ResponseTimeout,
	}, log, appMetrics)

	blackMarket := registerSources(rateService, cfg, log)
	rateService.WithParallelHistory(blackMarket)
	if unknown := rateService.UnknownSources(); len(unknown) > 0 {
		log.Warn("Configured rate sources are not registered", "sources", unknown)
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("Failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		historyRepo := postgres.NewHistoryRepository(pool, log)
		if err := historyRepo.Migrate(ctx); err != nil {
			log.Error("Failed to migrate snapshot history", "error", err)
			os.Exit(1)
		}
		rateService.WithHistory(historyRepo)
		log.Info("Snapshot history enabled")
	}

	var publisher ports.EventPublisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info("Rate events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()
	rateService.WithPublisher(publisher)

	rateFiles := repository.NewRateFiles(cfg.Sources.PublicDir, map[model.RateKind]string{
		model.Official: cfg.Sources.OfficialJSON,
		model.Parallel: cfg.Sources.ParallelJSON,
		model.NBE:      cfg.Sources.NBEJSON,
	}, log)
	if cfg.Admin.Key == "" {
		log.Warn("RATES_ADMIN_KEY not set, admin endpoints are disabled")
	}

	handler := httpRouter.NewHandler(rateService, rateFiles, cfg.Admin.Key, log, appMetrics)

	router := httpRouter.NewRouter(handler, prometheus.DefaultGatherer, log, appMetrics)
	routes := router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go refreshRates(ctx, rateService, cfg.Cache.RefreshInterval, log)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	cancelRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}

func newRateCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.RateCache, func()) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemoryCache(log), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not reachable, cache reads will miss until it is", "addr", cfg.Redis.Addr, "error", err)
	}
	log.Info("Using Redis rate cache", "addr", cfg.Redis.Addr)

	return cache.NewRedisCache(client, cfg.Redis.Prefix, log), func() {
		if err := client.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		}
	}
}

// registerSources builds every known source. Which ones run, and in what
// order, is decided by the configured priority lists.
func registerSources(svc *service.RateService, cfg *config.Config, log *logger.Logger) *source.EthioBlackMarket {
	src := cfg.Sources
	fetcher := scrape.NewFetcher(src.UserAgent, src.HTTPTimeout, src.HTTPRetries)

	var renderer ports.PageRenderer = scrape.DisabledRenderer{}
	if cfg.Browser.Enabled {
		renderer = scrape.NewChromeRenderer(scrape.RendererOptions{
			ExecPath:        cfg.Browser.ExecPath,
			UserAgent:       src.UserAgent,
			NavigateTimeout: cfg.Browser.NavigateTimeout,
			SelectorTimeout: cfg.Browser.SelectorTimeout,
			MaxConcurrent:   cfg.Browser.MaxConcurrent,
		}, log)
	}

	westernUnion := source.NewWesternUnion(src.WesternUnionURL, fetcher, renderer, log)
	blackMarket := source.NewEthioBlackMarket(src.EthioBlackMarketURL, fetcher)

	svc.RegisterSource(source.NewEthioxchange(src.EthioxchangeBaseURL, src.EthioxchangeBank, renderer))
	svc.RegisterSource(source.NewJSONSource("official-json", src.OfficialJSON, src.PublicDir, fetcher))
	svc.RegisterSource(westernUnion)
	svc.RegisterSource(source.NewBankPages(src.BankPages, fetcher, renderer, log).WithUSDOverlay(westernUnion))

	svc.RegisterSource(source.NewJSONSource("parallel-json", src.ParallelJSON, src.PublicDir, fetcher))
	svc.RegisterSource(blackMarket)
	svc.RegisterSource(source.NewDerived(svc, src.ParallelPremium))

	svc.RegisterSource(source.NewNBE(src.NBEAPIURL, fetcher))
	svc.RegisterSource(source.NewJSONSource("nbe-json", src.NBEJSON, src.PublicDir, fetcher))

	return blackMarket
}

// refreshRates periodically refreshes exchange rates
func refreshRates(ctx context.Context, svc *service.RateService, interval time.Duration, log *logger.Logger) {
	// Refresh rates immediately at startup
	if err := svc.RefreshRates(ctx); err != nil {
		log.Warn("Failed to refresh rates at startup", "error", err)
	}

	// Create ticker for periodic refresh
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := svc.RefreshRates(ctx); err != nil {
				log.Warn("Failed to refresh rates", "error", err)
			}
		case <-ctx.Done():
			log.Info("Stopping rate refresh goroutine")
			return
		}
	}
}
