package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/flightdelay/internal/adapters/http/api"
	"github.com/okian/flightdelay/internal/adapters/http/site"
	"github.com/okian/flightdelay/internal/adapters/http/swagger"
	"github.com/okian/flightdelay/internal/adapters/source"
	"github.com/okian/flightdelay/internal/adapters/source/csvsource"
	"github.com/okian/flightdelay/internal/adapters/source/pgsource"
	app "github.com/okian/flightdelay/internal/app"
	"github.com/okian/flightdelay/internal/config"
	"github.com/okian/flightdelay/pkg/logger"
	"github.com/okian/flightdelay/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging with defaults until the configuration is known.
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "service failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run starts the service and serves HTTP until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.InitWith(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		return err
	}
	loggerInstance := logger.Get()
	defer func() {
		_ = logger.Sync()
	}()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts, closer, err := serviceOptions(ctx, cfg, loggerInstance)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			loggerInstance.Warn(ctx, "closing record source failed", logger.Error(err))
		}
	}()

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// serviceOptions maps the configuration to service options. The closer
// releases the record source.
func serviceOptions(ctx context.Context, cfg *config.Config, l logger.Logger) ([]app.Option, io.Closer, error) {
	opts := []app.Option{
		app.WithLogger(l),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxBatchSize(cfg.MaxBatchSize),
		app.WithSnapshotInterval(cfg.SnapshotInterval),
		app.WithUnusualWeather(cfg.UnusualWeather),
		app.WithLateThreshold(cfg.LateThresholdMinutes),
	}

	var closer io.Closer = io.NopCloser(nil)
	var loader source.Loader
	switch cfg.Source {
	case config.SourceCSV:
		loader = csvsource.New(cfg.DatasetPath, csvsource.WithLogger(l.Named("csvsource")))
	case config.SourcePostgres:
		store, err := pgsource.Open(ctx, cfg.PostgresDSN, pgsource.WithLogger(l.Named("pgsource")))
		if err != nil {
			return nil, nil, err
		}
		loader = store
		closer = store
		opts = append(opts, app.WithSink(store))
	case config.SourceMemory:
	}
	if loader != nil {
		opts = append(opts, app.WithLoader(loader))
	}
	return opts, closer, nil
}

// newRouter mounts the API, the API docs and the landing site.
func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service) chi.Router {
	apiServer := api.NewServer(svc, svc,
		api.WithMaxRecordsLimit(cfg.MaxRecordsLimit),
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
		api.WithLogger(logger.Get().Named("api")),
	)
	r := apiServer.Router(ctx)
	swagger.Register(ctx, r)
	site.Register(ctx, r)
	return r
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

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges derived from the service snapshot.
// GetStats already updates the queue and worker gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if records, ok := stats["records"].(int); ok {
		metrics.UpdateRecordsTotal(records)
	}
	if routes, ok := stats["routes"].(int); ok {
		metrics.UpdateRoutesTotal(routes)
	}
}
