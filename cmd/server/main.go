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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"stockproxy/internal/cache"
	"stockproxy/internal/config"
	"stockproxy/internal/httpx"
	"stockproxy/internal/indicator"
	"stockproxy/internal/logger"
	"stockproxy/internal/metrics"
	"stockproxy/internal/provider"
	"stockproxy/internal/provider/alphavantage"
	"stockproxy/internal/provider/observe"
	"stockproxy/internal/provider/ratelimit"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.APIKeyMissing() {
		log.Warn("ALPHA_VANTAGE_API_KEY not set; using placeholder key")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := newStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := indicator.NewService(newFetcher(cfg.AlphaVantage, log, m), store,
		indicator.WithTTL(time.Duration(cfg.Cache.TTLSec)*time.Second),
		indicator.WithFetchTimeout(time.Duration(cfg.AlphaVantage.TimeoutSec)*time.Second),
		indicator.WithLogger(log),
		indicator.WithMetrics(m),
	)

	root := http.NewServeMux()
	root.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	root.Handle("/", withJSONHeaders(withGzip(recoverPanic(log, routes(svc, log)))))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withRequestID(accessLog(log, withCORS(cfg.Server.AllowedOrigins, root))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+cfg.AlphaVantage.TimeoutSec) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr), slog.String("cache", cfg.Cache.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newFetcher builds the provider chain: the Alpha Vantage client, optional
// pacing, then logging and metrics around every call.
func newFetcher(cfg config.AlphaVantage, log *slog.Logger, m *metrics.Metrics) provider.Fetcher {
	httpClient := httpx.New(time.Duration(cfg.TimeoutSec) * time.Second)

	var f provider.Fetcher = alphavantage.New(cfg.APIKey,
		alphavantage.WithBaseURL(cfg.Endpoint),
		alphavantage.WithHTTPClient(httpClient),
	)
	f = ratelimit.Pace(f, cfg.MaxRequestsPerMinute, cfg.Burst, time.Duration(cfg.MinRequestIntervalSec)*time.Second)
	return &observe.Fetcher{F: f, Logger: log, Metrics: m}
}

func newStore(cfg config.Cache) (cache.Store, func(), error) {
	if cfg.Backend != "redis" {
		return cache.NewMemory(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return r, func() { _ = r.Close() }, nil
}
