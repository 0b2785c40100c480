package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"emaildispatch/internal/breaker"
	"emaildispatch/internal/broker"
	"emaildispatch/internal/config"
	"emaildispatch/internal/observability"
	"emaildispatch/internal/provider"
	"emaildispatch/internal/ratelimit"
	"emaildispatch/internal/render"
	"emaildispatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := observability.GetLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting email dispatch worker",
		zap.String("log_level", cfg.LogLevel),
		zap.Int("concurrency", cfg.WorkerConcurrency))

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		var handler http.Handler
		metrics, handler, err = observability.NewMetrics()
		if err != nil {
			logger.Fatal("failed to set up metrics", zap.Error(err))
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", handler)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := broker.New(ctx, cfg.RedisURL())
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		Timeout:           cfg.Breaker.Timeout,
		RecoveryThreshold: cfg.Breaker.RecoveryThreshold,
	})
	limiter := ratelimit.New(rdb, nil)
	renderer := render.New()

	providers := provider.NewRegistry()
	for name := range config.DefaultProviderLimits() {
		providers.Register(provider.NewMock(name, logger, 0.95, 0.03))
	}

	pool := worker.New(rdb, breakers, limiter, renderer, providers, metrics, logger, worker.Config{
		Concurrency:   cfg.WorkerConcurrency,
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.RetryAttempts,
		RetryBodyTTL:  cfg.RetryBodyTTL,
		DeadLetterTTL: cfg.DeadLetterTTL,
		SendTimeout:   cfg.ProviderSendTimeout,
	})

	hostname, _ := os.Hostname()
	pool.Start(ctx, "worker-"+hostname)

	logger.Info("worker pool running, waiting for jobs...")

	<-ctx.Done()
	logger.Info("shutting down worker...")
	pool.Wait()
	logger.Info("worker shutdown complete")
}
