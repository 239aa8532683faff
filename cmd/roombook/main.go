package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/bootstrap"
	"github.com/example/roombook/internal/config"
	httptransport "github.com/example/roombook/internal/http"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/observability/metrics"
	"github.com/example/roombook/internal/observability/tracing"
	"github.com/example/roombook/internal/persistence/redis"
	"github.com/example/roombook/internal/persistence/sqlite"
	"github.com/example/roombook/internal/persistence/sqlite/migration"
)

const serviceName = "roombook"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "roombook:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return serve(ctx, server, cfg.ShutdownTimeout, logger)
}

// serve runs server until ctx is cancelled and then drains in-flight
// requests for at most timeout.
func serve(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("roombook API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received", "timeout", timeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// app holds the assembled HTTP handler and the resources behind it.
type app struct {
	Handler http.Handler
	Store   *sqlite.Store
	Metrics *metrics.Metrics

	logger  *slog.Logger
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
			a = nil
		}
	}()

	store, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return a, fmt.Errorf("open storage: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	if err = store.Migrate(ctx); err != nil {
		return a, fmt.Errorf("apply migrations: %w", err)
	}

	var sessions application.SessionStore
	if cfg.RedisURL != "" {
		rs, rerr := redis.Connect(ctx, cfg.RedisURL, logger)
		if rerr != nil {
			return a, fmt.Errorf("connect session store: %w", rerr)
		}
		sessions = rs
		a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
		logger.Info("session tokens stored in redis")
	}

	shutdownTracing, err := tracing.Init(ctx, logger, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		return a, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func(ctx context.Context) error { return shutdownTracing(ctx) })

	a.Metrics = metrics.New()

	services := bootstrap.NewServices(store, bootstrap.Options{
		Sessions:   sessions,
		SessionTTL: cfg.SessionTTL,
		Metrics:    a.Metrics,
		Logger:     logger,
	})

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(services.Auth, logger),
		Users:        httptransport.NewUserHandler(services.Users, services.Meetings, logger),
		Rooms:        httptransport.NewRoomHandler(services.Rooms, logger),
		Meetings:     httptransport.NewMeetingHandler(services.Meetings, logger),
		Sessions:     services.Auth,
		LoginLimiter: httptransport.NewLoginLimiter(cfg.LoginRate, cfg.LoginBurst, a.Metrics, logger).WithTrustedProxies(cfg.TrustedProxies),
		Health:       store.Ping,
		Metrics:      a.Metrics.Handler(),
		Instrument:   a.Metrics.Middleware,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
		Logger:       logger,
	})

	a.Handler = otelhttp.NewHandler(router, serviceName)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
