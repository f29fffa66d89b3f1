package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/elven/internal/config"
	"github.com/ashita-ai/elven/internal/ratelimit"
	"github.com/ashita-ai/elven/internal/server"
	"github.com/ashita-ai/elven/internal/service/admin"
	"github.com/ashita-ai/elven/internal/service/catalog"
	"github.com/ashita-ai/elven/internal/service/metrics"
	"github.com/ashita-ai/elven/internal/storage"
	"github.com/ashita-ai/elven/internal/telemetry"
	"github.com/ashita-ai/elven/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("ELVEN_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("elven starting", "version", version, "port", cfg.Port, "environment", cfg.Environment)

	tel, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:         cfg.OTELEnabled,
		TracesEndpoint:  cfg.OTELTracesEndpoint,
		MetricsEndpoint: cfg.OTELMetricsEndpoint,
		ServiceName:     cfg.ServiceName,
		ServiceVersion:  version,
		Environment:     cfg.Environment,
		MetricInterval:  cfg.MetricExportInterval,
		QueueSize:       cfg.TelemetryQueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return fmt.Errorf("storage: %w", err)
	}

	// RunMigrations records applied files and skips them on later starts,
	// so a failure here is a real schema problem.
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		_ = tel.Shutdown(context.Background())
		return fmt.Errorf("migrations: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}
	defer func() { _ = limiter.Close() }()

	products := catalog.NewProducts(db, tel)
	orders := catalog.NewOrders(db, tel)
	system := metrics.NewRuntimeSource(logger)
	aggregator := metrics.NewAggregator(system, db, cfg.SnapshotTimeout, logger)

	srv := server.New(server.Config{
		Telemetry:           tel,
		Products:            products,
		Orders:              orders,
		Admin:               admin.New(db, orders, tel),
		Snapshots:           aggregator,
		Alerts:              metrics.NewEvaluator(aggregator),
		Traces:              metrics.NewTraceClient(cfg.JaegerQueryURL, cfg.ServiceName, logger),
		System:              system,
		DB:                  db,
		Limiter:             limiter,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		Version:             version,
		Environment:         cfg.Environment,
	})

	sampleCtx, stopSampling := context.WithCancel(ctx)
	defer stopSampling()
	go sampleLoop(sampleCtx, tel, system, db, logger, cfg.SystemSampleInterval)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// Each phase gets its own timeout so early completion doesn't steal
	// budget from later phases. In-flight requests finish first, then
	// queued telemetry is exported, then the pool closes.
	slog.Info("elven shutting down")
	stopSampling()

	httpCtx, httpCancel := context.WithTimeout(context.Background(), cfg.ShutdownPhaseTimeout)
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	httpCancel()

	telCtx, telCancel := context.WithTimeout(context.Background(), cfg.ShutdownPhaseTimeout)
	if err := tel.Shutdown(telCtx); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
	telCancel()

	db.Close()

	slog.Info("elven stopped")
	return runErr
}

// sampleLoop refreshes the process gauges every interval until ctx is done.
func sampleLoop(ctx context.Context, tel *telemetry.Telemetry, system metrics.SystemSource, db *storage.DB, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sampleGauges(ctx, tel, system, db, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sampleGauges(ctx context.Context, tel *telemetry.Telemetry, system metrics.SystemSource, db *storage.DB, logger *slog.Logger) {
	if stats, err := system.System(ctx); err == nil {
		tel.SetLevel(ctx, telemetry.MetricMemoryUsage, float64(stats.Memory.HeapAlloc))
	} else if ctx.Err() == nil {
		logger.Warn("gauge sample: system stats failed", "error", err)
	}

	conns, err := db.ActiveConnections(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("gauge sample: active connections query failed, using pool stats", "error", err)
		}
		conns = int(db.PoolStats().AcquiredConns)
	}
	tel.SetLevel(ctx, telemetry.MetricActiveDBConnections, float64(conns))
}
