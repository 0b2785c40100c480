// Package scheduler runs the single-instance ticker of spec §4.6:
// promote due ScheduledSet entries, then promote due RetrySet entries,
// then reclaim stale pending stream entries. Grounded on
// original_source/scheduler.py's EmailScheduler.process_scheduled_emails.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"emaildispatch/internal/broker"
	"emaildispatch/internal/job"
	"emaildispatch/internal/observability"
)

// Broker is the subset of internal/broker.Client the scheduler depends
// on.
type Broker interface {
	PromoteScheduled(ctx context.Context, dedupTTL time.Duration) (promoted, expired int, err error)
	ProcessDueRetries(ctx context.Context, dedupTTL time.Duration) (promoted int, err error)
	ClaimStale(ctx context.Context, consumer string, minIdle time.Duration) (int, error)
	Stats(ctx context.Context, providers []string) (broker.StatsSnapshot, error)
}

// Config parameterizes the scheduler tick (spec §6).
type Config struct {
	Interval     time.Duration
	StaleMinIdle time.Duration
	ConsumerName string
	DedupTTL     time.Duration
	Providers    []string
}

// Scheduler runs the periodic promotion/reclaim tick. It is meant to run
// as a single instance, never alongside a second scheduler process (spec
// §4.6/§9).
type Scheduler struct {
	broker  Broker
	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     Config
}

// New builds a Scheduler.
func New(broker Broker, metrics *observability.Metrics, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "scheduler"
	}
	return &Scheduler{broker: broker, metrics: metrics, logger: logger, cfg: cfg}
}

// Run blocks, ticking every cfg.Interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	promotedScheduled, expired, err := s.broker.PromoteScheduled(ctx, s.cfg.DedupTTL)
	if err != nil {
		s.logger.Error("promote scheduled failed", zap.Error(err))
	} else if promotedScheduled > 0 || expired > 0 {
		s.logger.Info("promoted scheduled jobs",
			zap.Int("promoted", promotedScheduled), zap.Int("expired", expired))
	}
	if expired > 0 && s.metrics != nil {
		s.metrics.RecordScheduledExpired(ctx, int64(expired))
	}

	promotedRetries, err := s.broker.ProcessDueRetries(ctx, s.cfg.DedupTTL)
	if err != nil {
		s.logger.Error("process due retries failed", zap.Error(err))
	} else if promotedRetries > 0 {
		s.logger.Info("promoted due retries", zap.Int("promoted", promotedRetries))
	}

	claimed, err := s.broker.ClaimStale(ctx, s.cfg.ConsumerName, s.cfg.StaleMinIdle)
	if err != nil {
		s.logger.Error("claim stale entries failed", zap.Error(err))
	} else if claimed > 0 {
		s.logger.Info("reclaimed stale pending entries", zap.Int("count", claimed))
		if s.metrics != nil {
			s.metrics.RecordStaleClaimed(ctx, int64(claimed))
		}
	}

	s.reportStats(ctx)
}

// reportStats samples queue depth and rate-limit token levels (spec
// §4.1 stats()/§7's stats visibility path) and feeds the queue-depth
// gauges read back by the Prometheus exporter. Stats itself also
// re-derives queue depth from XLEN, but the scheduler is the only
// process running on a steady tick, so it owns sampling the gauge.
func (s *Scheduler) reportStats(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	snap, err := s.broker.Stats(ctx, s.cfg.Providers)
	if err != nil {
		s.logger.Warn("stats sample failed", zap.Error(err))
		return
	}
	for i, p := range job.Priorities {
		s.metrics.SetQueueDepth(i, snap.QueueDepth[string(p)])
	}
}
