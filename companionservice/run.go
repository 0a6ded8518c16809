// Package companionservice assembles and runs the companion HTTP service.
package companionservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/api"
	"github.com/chrislearn/mofa-studio/internal/config"
	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/factory"
	"github.com/chrislearn/mofa-studio/internal/health"
	"github.com/chrislearn/mofa-studio/internal/logger"
	"github.com/chrislearn/mofa-studio/internal/pipeline"
	"github.com/chrislearn/mofa-studio/internal/services"
	"github.com/chrislearn/mofa-studio/internal/shardqueue"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// Service holds the wired components of one running instance.
type Service struct {
	Store      store.Store
	Dispatcher *pipeline.Dispatcher
	Health     *health.ServiceHealthChecker
	Router     *mux.Router
}

// Run starts the companion service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("companion-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log = log.Level(logger.ParseLevel(cfg.LogLevel))

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("time_zone", cfg.TimeZone).
		Msg("Companion service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close(log)

	svc.StartHealthCheckers(ctx, cfg)
	if err := waitUntilHealthy(ctx, cfg, svc.Health); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, svc.Router)
	errCh := serveHTTP(server, log, cfg)

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

// Build constructs the store, services, gate, dispatcher and router.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Service, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	checkers := []health.HealthChecker{storeChecker}

	var responder pipeline.Responder
	if cfg.ResponderURL != "" {
		wh := pipeline.NewWebhookResponder(cfg.ResponderURL, 10*time.Second)
		responder = wh
		checkers = append(checkers, health.NewPingChecker("responder", wh, log, probeTimeout, health.WithFailureThreshold(3)))
	}

	sched := services.NewSchedulerService(st, services.PolicyFromConfig(cfg), log)
	rec := services.NewRecorderService(st, sched, log)
	disp := pipeline.New(turngate.New(log), rec, responder, dispatchConfig(cfg), log)

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	router := api.NewRouter(api.Deps{
		Scheduler:  sched,
		Items:      services.NewItemService(st, log),
		Sessions:   services.NewSessionService(st, log),
		Recorder:   rec,
		Dispatcher: disp,
		Health:     svcHealth,
		Clock:      time.Now,
		Log:        log,
	})
	return &Service{Store: st, Dispatcher: disp, Health: svcHealth, Router: router}, nil
}

// StartHealthCheckers launches the aggregator, which starts each component checker.
func (s *Service) StartHealthCheckers(ctx context.Context, cfg *config.Config) {
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go s.Health.Start(ctx, interval)
}

// Close drains the dispatcher before closing the store it writes to.
func (s *Service) Close(log zerolog.Logger) {
	if err := s.Dispatcher.Close(); err != nil {
		log.Error().Err(err).Msg("dispatcher close failed")
	}
	if err := s.Store.Close(); err != nil {
		log.Error().Err(err).Msg("store close failed")
	}
}

// dispatchConfig maps the COMPANION_DISPATCH_* settings onto the executor.
func dispatchConfig(cfg *config.Config) shardqueue.Config {
	return shardqueue.Config{
		Shards:      cfg.DispatchShards,
		QueueSize:   cfg.DispatchQueueSize,
		MaxAttempts: cfg.DispatchMaxAttempts,
	}
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

// startupHealthTimeout is twice the probe interval with a floor of 60 seconds.
func startupHealthTimeout(healthIntervalSeconds int) time.Duration {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		timeout = 60
	}
	return time.Duration(timeout) * time.Second
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeout := startupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
