package main

import (
	"bookstore-web/internal/adapter"
	"bookstore-web/internal/config"
	"bookstore-web/internal/core"
	"bookstore-web/internal/render"
	"bookstore-web/internal/telemetry"
	"bookstore-web/pkg/http_client"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	serviceName    = "bookstore-web"
	serviceVersion = "0.1.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTelEndpoint, serviceName, serviceVersion)
		if err != nil {
			return err
		}
		defer shutdownTracer(context.Background())
	}
	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		return err
	}
	defer shutdownMeter(context.Background())
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	view, err := render.New(render.Options{
		PageSize:         cfg.PageSize,
		DateLayout:       cfg.DateLayout,
		PlaceholderImage: cfg.PlaceholderImage,
		Currency:         cfg.Currency,
	})
	if err != nil {
		return err
	}

	transport := http_client.NewTransport()
	newStorefront := func(_ context.Context, sessionID uuid.UUID) (*core.Storefront, error) {
		cli, err := http_client.CreateHTTPClient(transport, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		api := adapter.NewBookstoreClient(cfg.BackendURL, cfg.Retry, cli)
		api.CSRFCookie = cfg.CSRFCookie
		api.CSRFHeader = cfg.CSRFHeader
		api.Observer = metrics
		return core.NewStorefront(api, view,
			core.WithLogger(logger.With("session", sessionID.String())),
			core.WithFadeDelay(cfg.FadeDelay),
			core.WithStaleHook(metrics.StaleDropped),
		), nil
	}

	sessions := adapter.NewSessionRepo(
		adapter.WithSessionHooks(metrics.SessionOpened, metrics.SessionClosed),
		adapter.WithMaxSessions(cfg.MaxSessions),
	)
	go sessions.RunSweeper(ctx, time.Minute, cfg.SessionTTL, func(n int) {
		logger.Info("expired sessions dropped", "count", n)
	})

	h := adapter.NewHandler(sessions, newStorefront, adapter.NewPageRenderer(view), logger,
		adapter.WithMetricsHandler(metricsHandler),
		adapter.WithAssets(render.Assets()),
		adapter.WithSessionCookie(cfg.SessionCookie, cfg.SecureCookie),
		adapter.WithRequestTimeout(cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
