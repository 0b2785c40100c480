package broker

import (
	"context"
	"fmt"
	"strconv"

	"emaildispatch/internal/job"
)

// Stats gathers StatsCounters, per-priority queue depth, and the current
// token count for each provider named in providers, grounded on
// original_source/redis_client_lib/redis_client.py's get_stats.
func (c *Client) Stats(ctx context.Context, providers []string) (StatsSnapshot, error) {
	snap := StatsSnapshot{
		QueueDepth: make(map[string]int64, len(job.Priorities)),
		RateTokens: make(map[string]float64, len(providers)),
	}

	counters, err := c.HGetAll(ctx, keyStatsDaily).Result()
	if err != nil {
		return snap, fmt.Errorf("broker: stats counters: %w", err)
	}
	snap.Sent, _ = strconv.ParseInt(counters["sent"], 10, 64)
	snap.Failed, _ = strconv.ParseInt(counters["failed"], 10, 64)

	for _, p := range job.Priorities {
		n, err := c.XLen(ctx, queueKey(p)).Result()
		if err != nil {
			return snap, fmt.Errorf("broker: queue depth for %s: %w", p, err)
		}
		snap.QueueDepth[string(p)] = n
	}

	for _, provider := range providers {
		tokens, err := c.HGet(ctx, rateKey(provider), "tokens").Result()
		if err != nil {
			continue
		}
		if v, err := strconv.ParseFloat(tokens, 64); err == nil {
			snap.RateTokens[provider] = v
		}
	}

	return snap, nil
}
