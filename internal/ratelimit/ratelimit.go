// Package ratelimit is the thin Go-side wrapper around the broker's
// token-bucket script, grounded on the teacher's internal/rate.Limiter
// shape (NewLimiter(client, ...), Allow(ctx, id)) generalized from a
// per-client RPS limiter to the spec's per-provider bucket (spec §4.2).
package ratelimit

import (
	"context"
	"fmt"

	"emaildispatch/internal/config"
)

// rateChecker is satisfied by *broker.Client; kept narrow so this package
// doesn't need to import broker's concrete type in its exported API.
type rateChecker interface {
	CheckRate(ctx context.Context, provider string, bucketSize, refillPerMin, tokensNeeded int) (bool, error)
}

// Limiter admits or denies a send for a provider using the configured
// token bucket.
type Limiter struct {
	broker rateChecker
	limits map[string]config.ProviderLimit
}

// New builds a Limiter over limits, falling back to
// config.DefaultProviderLimits for any provider not explicitly
// configured.
func New(broker rateChecker, limits map[string]config.ProviderLimit) *Limiter {
	merged := config.DefaultProviderLimits()
	for k, v := range limits {
		merged[k] = v
	}
	return &Limiter{broker: broker, limits: merged}
}

// Allow consumes tokens tokens for provider if that many are available
// (spec §4.5 step 3: "ask rate limiter for len(recipients) tokens").
func (l *Limiter) Allow(ctx context.Context, provider string, tokens int) (bool, error) {
	limit, ok := l.limits[provider]
	if !ok {
		limit = config.ProviderLimit{BucketSize: 100, RefillPerMin: 20}
	}

	allowed, err := l.broker.CheckRate(ctx, provider, limit.BucketSize, limit.RefillPerMin, tokens)
	if err != nil {
		return false, fmt.Errorf("ratelimit: allow %s: %w", provider, err)
	}
	return allowed, nil
}
