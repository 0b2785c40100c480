package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"emaildispatch/internal/broker"
	"emaildispatch/internal/config"
	"emaildispatch/internal/observability"
	"emaildispatch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := observability.GetLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting email dispatch scheduler",
		zap.Duration("interval", cfg.SchedulerInterval))

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

	providerNames := make([]string, 0, len(config.DefaultProviderLimits()))
	for name := range config.DefaultProviderLimits() {
		providerNames = append(providerNames, name)
	}

	sched := scheduler.New(rdb, metrics, logger, scheduler.Config{
		Interval:     cfg.SchedulerInterval,
		StaleMinIdle: cfg.StaleClaimMinIdle,
		ConsumerName: "scheduler",
		DedupTTL:     cfg.DedupTTL,
		Providers:    providerNames,
	})

	logger.Info("scheduler running")
	sched.Run(ctx)
	logger.Info("scheduler shutdown complete")
}
