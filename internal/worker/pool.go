// Package worker implements the priority-drain worker pool of spec §4.5:
// N identical workers, each a stable worker_id, running a main loop
// (batch dequeue with batch-level fan-out) and a stats reporter. The
// retry poller is delegated to the scheduler process per §4.6 ("Scheduler
// is not a worker"). Grounded on the teacher's internal/worker.Worker
// (fixed goroutine pool draining a channel, atomic counters, periodic
// metrics log), generalized from a single-queue SMS consumer to the
// spec's breaker/limiter/render/provider/ack pipeline — this codebase
// keeps one production pipeline rather than the teacher's separate
// simple/enhanced worker variants.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"emaildispatch/internal/breaker"
	"emaildispatch/internal/job"
	"emaildispatch/internal/observability"
	"emaildispatch/internal/provider"
	"emaildispatch/internal/ratelimit"
	"emaildispatch/internal/render"
)

// Broker is the subset of internal/broker.Client the pool depends on,
// kept narrow for testability.
type Broker interface {
	Dequeue(ctx context.Context, consumer string, count int64) ([]*job.Job, error)
	Ack(ctx context.Context, j *job.Job, success, retriable bool, lastErr string, maxRetries int, retryBodyTTL, dlqTTL time.Duration) (job.Status, error)
}

// Config parameterizes the pool (spec §6).
type Config struct {
	Concurrency   int
	BatchSize     int
	MaxRetries    int
	RetryBodyTTL  time.Duration
	DeadLetterTTL time.Duration
	SendTimeout   time.Duration
}

// Pool is the production worker pool: a fixed number of goroutines
// draining a channel fed by a single batch-dequeue loop, plus a stats
// reporter, all stoppable via context cancellation.
type Pool struct {
	broker    Broker
	breakers  *breaker.Registry
	limiter   *ratelimit.Limiter
	renderer  *render.Renderer
	providers *provider.Registry
	metrics   *observability.Metrics
	logger    *zap.Logger
	cfg       Config

	jobChan chan *job.Job
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

// New builds a Pool; call Start to launch its goroutines.
func New(
	b Broker,
	breakers *breaker.Registry,
	limiter *ratelimit.Limiter,
	renderer *render.Renderer,
	providers *provider.Registry,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Pool {
	return &Pool{
		broker:    b,
		breakers:  breakers,
		limiter:   limiter,
		renderer:  renderer,
		providers: providers,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		jobChan:   make(chan *job.Job, cfg.BatchSize*cfg.Concurrency),
	}
}

// Start launches the fixed worker goroutines, the main dequeue loop, and
// the stats reporter. It returns immediately; call Wait to block until
// ctx cancellation has drained everything.
func (p *Pool) Start(ctx context.Context, workerIDPrefix string) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", workerIDPrefix, i)
		p.wg.Add(1)
		go p.runWorker(ctx, workerID)
	}

	p.wg.Add(1)
	go p.mainLoop(ctx, workerIDPrefix)

	p.wg.Add(1)
	go p.statsReporter(ctx)
}

// Wait blocks until every pool goroutine has exited, which happens once
// ctx is cancelled (spec §5's cooperative shutdown).
func (p *Pool) Wait() {
	p.wg.Wait()
}

// mainLoop repeatedly calls Dequeue and fans each returned batch out to
// the worker goroutines.
func (p *Pool) mainLoop(ctx context.Context, consumer string) {
	defer p.wg.Done()
	defer close(p.jobChan)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobs, err := p.broker.Dequeue(ctx, consumer, int64(p.cfg.BatchSize))
		if err != nil {
			p.logger.Warn("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, j := range jobs {
			select {
			case p.jobChan <- j:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runWorker drains the shared job channel, processing one job at a time
// per goroutine. Batch-level fan-out comes from having Concurrency
// goroutines all reading the same channel, so a slow provider call for
// one job never stalls its batch siblings, and the next batch is only
// dequeued once the channel has room.
func (p *Pool) runWorker(ctx context.Context, workerID string) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobChan:
			if !ok {
				return
			}
			p.process(ctx, workerID, j)
		}
	}
}

// process runs the per-job pipeline of spec §4.5 steps 1-7.
func (p *Pool) process(ctx context.Context, workerID string, j *job.Job) {
	j.Status = job.StatusSending

	br := p.breakers.Get(j.Provider)

	if !br.Permit() {
		p.finish(ctx, workerID, j, false, true, "circuit breaker open")
		return
	}

	allowed, err := p.limiter.Allow(ctx, j.Provider, len(j.Recipients))
	if err != nil {
		p.logger.Warn("rate limiter check failed", zap.String("job_id", j.ID), zap.Error(err))
	}
	if !allowed {
		p.finish(ctx, workerID, j, false, true, "rate limit exceeded")
		return
	}

	headers, body, err := p.renderer.Render(j.TemplateName, j.TemplateData)
	if err != nil {
		headers, body = render.Fallback(j.TemplateData)
	}

	prov, err := p.providers.Get(j.Provider)
	if err != nil {
		p.finish(ctx, workerID, j, false, false, err.Error())
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	result := prov.Send(sendCtx, j, headers.Subject, string(body))
	cancel()

	if result.OK {
		br.RecordSuccess()
	} else {
		br.RecordFailure()
	}

	lastErr := ""
	if result.Err != nil {
		lastErr = result.Err.Error()
	}
	p.finish(ctx, workerID, j, result.OK, result.Retriable, lastErr)
}

// finish runs step 7: ack the job and update local counters/metrics.
func (p *Pool) finish(ctx context.Context, workerID string, j *job.Job, success, retriable bool, lastErr string) {
	status, err := p.broker.Ack(ctx, j, success, retriable, lastErr, p.cfg.MaxRetries, p.cfg.RetryBodyTTL, p.cfg.DeadLetterTTL)
	if err != nil {
		p.logger.Error("ack failed", zap.String("job_id", j.ID), zap.String("worker_id", workerID), zap.Error(err))
		return
	}

	if success {
		p.processed.Add(1)
		if p.metrics != nil {
			p.metrics.RecordSent(ctx)
		}
	} else {
		p.failed.Add(1)
		if p.metrics != nil {
			p.metrics.RecordFailed(ctx)
			if status == job.StatusRetry {
				p.metrics.RecordRetryScheduled(ctx)
			}
		}
	}

	p.logger.Debug("job acked",
		zap.String("job_id", j.ID),
		zap.String("worker_id", workerID),
		zap.String("status", string(status)))
}

// statsReporter periodically logs aggregate throughput, mirroring the
// teacher's metricsLogger.
func (p *Pool) statsReporter(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logger.Info("worker pool stats",
				zap.Int64("processed", p.processed.Load()),
				zap.Int64("failed", p.failed.Load()),
				zap.Int("pool_size", p.cfg.Concurrency))
		}
	}
}
