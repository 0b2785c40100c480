package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"emaildispatch/internal/breaker"
	"emaildispatch/internal/config"
	"emaildispatch/internal/job"
	"emaildispatch/internal/provider"
	"emaildispatch/internal/ratelimit"
	"emaildispatch/internal/render"
	"emaildispatch/internal/worker"
)

type fakeRateChecker struct{ allow bool }

func (f *fakeRateChecker) CheckRate(context.Context, string, int, int, int) (bool, error) {
	return f.allow, nil
}

type fakeBroker struct {
	mu      sync.Mutex
	jobs    []*job.Job
	acked   []job.Status
	dequeue int
}

func (b *fakeBroker) Dequeue(_ context.Context, _ string, _ int64) ([]*job.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dequeue++
	if b.dequeue > 1 || len(b.jobs) == 0 {
		return nil, nil
	}
	out := b.jobs
	b.jobs = nil
	return out, nil
}

func (b *fakeBroker) Ack(_ context.Context, j *job.Job, success, retriable bool, _ string, maxRetries int, _, _ time.Duration) (job.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := job.StatusSent
	if !success {
		j.RetryCount++
		if retriable && j.RetryCount < maxRetries {
			status = job.StatusRetry
		} else {
			status = job.StatusDeadLetter
		}
	}
	b.acked = append(b.acked, status)
	return status, nil
}

func newTestPool(t *testing.T, fb *fakeBroker, allowRate bool, successRate float64) *worker.Pool {
	t.Helper()

	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	limiter := ratelimit.New(&fakeRateChecker{allow: allowRate}, config.DefaultProviderLimits())
	renderer := render.New()

	providers := provider.NewRegistry()
	providers.Register(provider.NewMock("sendgrid", zap.NewNop(), successRate, 0))

	return worker.New(fb, breakers, limiter, renderer, providers, nil, zap.NewNop(), worker.Config{
		Concurrency:   2,
		BatchSize:     10,
		MaxRetries:    3,
		RetryBodyTTL:  time.Hour,
		DeadLetterTTL: time.Hour,
		SendTimeout:   time.Second,
	})
}

func TestPoolProcessesJobToSent(t *testing.T) {
	j, err := job.New([]string{"user@example.com"}, "user_welcome", map[string]any{"name": "Ada"}, job.PriorityHigh, "sendgrid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	j.StreamID = "1-1"

	fb := &fakeBroker{jobs: []*job.Job{j}}
	pool := newTestPool(t, fb, true, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	pool.Start(ctx, "test")
	pool.Wait()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.acked) != 1 || fb.acked[0] != job.StatusSent {
		t.Fatalf("expected one SENT ack, got %v", fb.acked)
	}
}

func TestPoolRateLimitDenyIsRetriable(t *testing.T) {
	j, err := job.New([]string{"user@example.com"}, "user_welcome", map[string]any{"name": "Ada"}, job.PriorityHigh, "sendgrid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	j.StreamID = "1-1"

	fb := &fakeBroker{jobs: []*job.Job{j}}
	pool := newTestPool(t, fb, false, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	pool.Start(ctx, "test")
	pool.Wait()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.acked) != 1 || fb.acked[0] != job.StatusRetry {
		t.Fatalf("expected one RETRY ack from rate-limit deny, got %v", fb.acked)
	}
}
