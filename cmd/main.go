package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sailorworks/verigrant/internal/adapters/http/api"
	"github.com/sailorworks/verigrant/internal/analyzer"
	"github.com/sailorworks/verigrant/internal/analyzer/cache"
	app "github.com/sailorworks/verigrant/internal/app"
	"github.com/sailorworks/verigrant/internal/avatar"
	"github.com/sailorworks/verigrant/internal/chain"
	"github.com/sailorworks/verigrant/internal/config"
	"github.com/sailorworks/verigrant/internal/lifecycle"
	"github.com/sailorworks/verigrant/internal/scraper"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 15 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Profile analysis stack: scraper -> model -> cache.
	source := scraper.NewClient(cfg.ScraperBaseURL, cfg.ScraperToken,
		scraper.WithMaxPosts(cfg.MaxPosts),
	)

	var analysisCache cache.Cache
	if cfg.CacheAddr != "" {
		analysisCache = cache.NewRedis(cfg.CacheAddr, cfg.CacheUsername, cfg.CachePassword)
		loggerInstance.Info(ctx, "using redis analysis cache", logger.String("addr", cfg.CacheAddr))
	} else {
		analysisCache = cache.NewMemory()
		loggerInstance.Info(ctx, "using in-memory analysis cache")
	}

	scoringModel, err := analyzer.NewGenAIModel(ctx, cfg.ModelAPIKey, cfg.ModelName)
	if err != nil {
		os.Stderr.WriteString("failed to create scoring model: " + err.Error() + "\n")
		return
	}

	profileAnalyzer := analyzer.New(source, scoringModel, analysisCache,
		analyzer.WithTTL(time.Duration(cfg.AnalysisTTLHours)*time.Hour),
		analyzer.WithMaxPosts(cfg.MaxPosts),
	)

	avatars := avatar.New(cfg.AvatarProxyBaseURL)

	// Chain features come up only when fully configured.
	var registry chain.Registry
	if cfg.RPCURL != "" && cfg.OperatorKeyHex != "" {
		ethRegistry, err := chain.NewEthRegistry(cfg.RPCURL, cfg.RegistryAddress, cfg.NFTAddress, cfg.OperatorKeyHex, cfg.ChainID)
		if err != nil {
			os.Stderr.WriteString("failed to connect chain registry: " + err.Error() + "\n")
			return
		}
		registry = ethRegistry
		loggerInstance.Info(ctx, "chain registry connected", logger.String("rpc", cfg.RPCURL))
	} else {
		loggerInstance.Warn(ctx, "chain features disabled; rpc_url or operator_key not configured")
	}

	// Create and start the service with configuration options
	opts := []app.Option{
		app.WithLogger(loggerInstance),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.ResolutionQueueSize),
		app.WithStorePath(cfg.StorePath),
		app.WithSaveDebounce(time.Duration(cfg.SaveDebounceMS) * time.Millisecond),
		app.WithAnalyzer(profileAnalyzer),
		app.WithAvatarResolver(avatars),
		app.WithNonceTTL(time.Duration(cfg.NonceTTLMinutes) * time.Minute),
		app.WithMintPollInterval(time.Duration(cfg.MintPollIntervalMS) * time.Millisecond),
	}
	if registry != nil {
		opts = append(opts, app.WithRegistry(registry))
	}
	svc := app.New(opts...)

	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop(context.Background())

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Surface lifecycle notifications in the logs
	go logEvents(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// logEvents drains the lifecycle notification stream into the logs.
func logEvents(ctx context.Context, svc *app.Service) {
	log := logger.Get().Named("events")
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-svc.Events():
			if !ok {
				return
			}
			switch evt.Type {
			case lifecycle.EventRolledBack:
				log.Warn(ctx, "placement rolled back",
					logger.String("username", evt.Placement.Username),
					logger.String("reason", evt.Message),
				)
			case lifecycle.EventMintFulfilled:
				log.Info(ctx, "mint fulfilled", logger.String("detail", evt.Message))
			default:
				log.Debug(ctx, "chart event",
					logger.String("type", string(evt.Type)),
					logger.String("id", evt.Placement.ID),
				)
			}
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
