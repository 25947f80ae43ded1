package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/elevenvotes/consensus/internal/adapters/http/api"
	"github.com/elevenvotes/consensus/internal/adapters/http/swagger"
	"github.com/elevenvotes/consensus/internal/adapters/http/ws"
	app "github.com/elevenvotes/consensus/internal/app"
	"github.com/elevenvotes/consensus/internal/config"
	"github.com/elevenvotes/consensus/pkg/logger"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't configured yet.
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled and then shuts everything down in order:
// HTTP server, live hub, then the snapshot pipeline.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hubOpts := []ws.Option{ws.WithLogger(log.Named("ws"))}
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		hubOpts = append(hubOpts, ws.WithCheckOrigin(ws.AllowOrigins(origins)))
	}
	hub := ws.NewHub(hubOpts...)
	go hub.Run(hubCtx)

	svc := newService(cfg, log, hub)
	// Workers outlive the signal so queued snapshots are drained on shutdown.
	if err := svc.Start(context.Background()); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(cfg, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	stopHub()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return runErr
}

func newService(cfg *config.Config, log logger.Logger, hub *ws.Hub) *app.Service {
	engine := app.NewEngine(
		app.WithMomentumParams(cfg.MomentumParams()),
		app.WithHotColdLimit(cfg.HotColdLimit),
		app.WithFallbackFormation(cfg.DefaultFormation),
	)
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithEngine(engine),
		app.WithBroadcaster(hub),
	}
	if cfg.RedisAddr != "" {
		opts = append(opts, app.WithRedis(cfg.RedisAddr, cfg.RedisTTL()))
	}
	return app.New(opts...)
}

func newMux(cfg *config.Config, svc *app.Service, hub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc,
		api.WithMaxSnapshotBytes(cfg.MaxSnapshotBytes),
		api.WithLive(hub),
		api.WithDocs(swagger.Routes()),
	).Register(mux)
	return mux
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx is done.
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

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
