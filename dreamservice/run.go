package dreamservice

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/api"
	"github.com/zym9863/Dream-s-Exit/internal/config"
	"github.com/zym9863/Dream-s-Exit/internal/factory"
	"github.com/zym9863/Dream-s-Exit/internal/health"
	"github.com/zym9863/Dream-s-Exit/internal/logger"
	"github.com/zym9863/Dream-s-Exit/internal/services"
	"github.com/zym9863/Dream-s-Exit/internal/store"
	"github.com/zym9863/Dream-s-Exit/internal/sweeper"
)

// Run starts the dreams-exit HTTP server and blocks until shutdown or error.
func Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithLevel("dreams-exit", cfg.LogLevel)

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("dreams-exit starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer closeStore(st, log)

	// Start health checkers and bind service health
	svcHealth := startHealthCheckers(ctx, cfg, log, st)

	router := buildRouter(st, svcHealth.IsHealthy, log)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	startSweeper(ctx, cfg, log, st)

	// HTTP server and serve
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// loadConfig reads the environment, logging failures before a level is known.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		bootLog := logger.New("dreams-exit")
		bootLog.Error().Err(err).Msg("Failed to load configuration")
		return nil, err
	}
	return cfg, nil
}

// buildRouter wires services to HTTP routes.
func buildRouter(st store.Store, isHealthy func() bool, log zerolog.Logger) *mux.Router {
	return api.NewRouter(api.Deps{
		Memories:  services.NewMemoryService(st, log),
		Echoes:    services.NewEchoService(st, log),
		IsHealthy: isHealthy,
		Log:       log,
	})
}

// startHealthCheckers starts the store checker and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := healthInterval(cfg)

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

// startSweeper runs the echo sweeper in the background when retention is set.
func startSweeper(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) {
	sw := sweeper.New(st.Echoes(), sweeper.Config{
		Retention: time.Duration(cfg.EchoRetentionHours) * time.Hour,
		Interval:  time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
	}, log.With().Str("component", "sweeper").Logger())
	if !sw.Enabled() {
		return
	}
	go func() { _ = sw.Run(ctx) }()
}

func healthInterval(cfg *config.Config) time.Duration {
	if cfg.HealthIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.HealthIntervalSeconds) * time.Second
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.Evaluate() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func closeStore(st store.Store, log zerolog.Logger) {
	if c, ok := st.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
