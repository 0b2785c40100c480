package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics exposes the StatsCounters and gauges named by spec §3/§4.1/§4.6,
// backed by OpenTelemetry's Prometheus exporter so the dispatch core's
// stats are scrapable the way the rest of the example pack exposes metrics.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	sentTotal             otelmetric.Int64Counter
	failedTotal           otelmetric.Int64Counter
	retryAttemptsTotal    otelmetric.Int64Counter
	scheduledExpiredTotal otelmetric.Int64Counter
	staleClaimedTotal     otelmetric.Int64Counter

	queueDepth  [3]atomic.Int64 // indexed by job.Priority position in job.Priorities
	rateTokens  atomic.Value    // map[string]float64; set empty by NewMetrics and not updated afterwards, no gauge reads it
}

// NewMetrics builds the meter provider and registers the counters and
// gauges the dispatch core emits. The returned http.Handler serves the
// Prometheus exposition format and should be mounted at /metrics.
func NewMetrics() (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("observability: prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("emaildispatch")

	m := &Metrics{provider: provider}
	m.rateTokens.Store(map[string]float64{})

	if m.sentTotal, err = meter.Int64Counter("email_dispatch_sent_total",
		otelmetric.WithDescription("jobs successfully delivered")); err != nil {
		return nil, nil, err
	}
	if m.failedTotal, err = meter.Int64Counter("email_dispatch_failed_total",
		otelmetric.WithDescription("job send attempts that did not succeed")); err != nil {
		return nil, nil, err
	}
	if m.retryAttemptsTotal, err = meter.Int64Counter("email_dispatch_retry_attempts_total",
		otelmetric.WithDescription("retries scheduled after a retriable failure")); err != nil {
		return nil, nil, err
	}
	if m.scheduledExpiredTotal, err = meter.Int64Counter("email_dispatch_scheduled_job_body_expired_total",
		otelmetric.WithDescription("scheduled jobs whose body TTL expired before their send time")); err != nil {
		return nil, nil, err
	}
	if m.staleClaimedTotal, err = meter.Int64Counter("email_dispatch_stale_claimed_total",
		otelmetric.WithDescription("pending stream entries reclaimed from a crashed consumer")); err != nil {
		return nil, nil, err
	}

	for i, p := range []string{"high", "medium", "low"} {
		idx := i
		name := p
		_, err := meter.Int64ObservableGauge(
			fmt.Sprintf("email_dispatch_queue_depth_%s", name),
			otelmetric.WithDescription("stream length for the "+name+" priority queue"),
			otelmetric.WithInt64Callback(func(_ context.Context, obs otelmetric.Int64Observer) error {
				obs.Observe(m.queueDepth[idx].Load())
				return nil
			}),
		)
		if err != nil {
			return nil, nil, err
		}
	}

	return m, promhttp.Handler(), nil
}

// RecordSent increments the sent counter (spec §3 StatsCounters.sent).
func (m *Metrics) RecordSent(ctx context.Context) { m.sentTotal.Add(ctx, 1) }

// RecordFailed increments the failed counter (spec §3 StatsCounters.failed).
func (m *Metrics) RecordFailed(ctx context.Context) { m.failedTotal.Add(ctx, 1) }

// RecordRetryScheduled increments the retry counter.
func (m *Metrics) RecordRetryScheduled(ctx context.Context) { m.retryAttemptsTotal.Add(ctx, 1) }

// RecordScheduledExpired increments the open-question metric from spec §9
// ("preserve the silent-drop behavior but expose a metric") by n.
func (m *Metrics) RecordScheduledExpired(ctx context.Context, n int64) {
	m.scheduledExpiredTotal.Add(ctx, n)
}

// RecordStaleClaimed increments the count of pending entries reclaimed by
// the periodic XAUTOCLAIM sweep.
func (m *Metrics) RecordStaleClaimed(ctx context.Context, n int64) {
	m.staleClaimedTotal.Add(ctx, n)
}

// SetQueueDepth updates the queue-depth gauge that the Prometheus
// exporter reads on each scrape; the scheduler's reportStats calls it.
// idx follows the order of job.Priorities (0=HIGH, 1=MEDIUM, 2=LOW).
func (m *Metrics) SetQueueDepth(idx int, depth int64) {
	if idx < 0 || idx >= len(m.queueDepth) {
		return
	}
	m.queueDepth[idx].Store(depth)
}

// Shutdown flushes and closes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
