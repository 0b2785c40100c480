// Package broker wraps Redis as the durable, priority-aware queue
// described by spec §4.1/§6: streams with consumer groups for the live
// queues, sorted sets for retry/schedule, a list for the dead letter
// store, and hashes for rate buckets and daily stats. Enqueue, Ack and
// CheckRate are Lua scripts loaded once and run with EVALSHA;
// EnqueueScheduled's two writes go through a MULTI/EXEC pipeline. Grounded on original_source/redis_client_lib/redis_client.py and the
// teacher's persistence.RedisClient embedding style.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"emaildispatch/internal/job"
)

// ConsumerGroup is the single consumer group shared by every priority
// stream, matching original_source's "email_workers".
const ConsumerGroup = "email_workers"

const (
	keyDedup        = "email:dedup"
	keyRetry        = "email:retry"
	keyScheduled    = "email:scheduled"
	keyDeadLetter   = "email:dead_letter"
	keyStatsDaily   = "email:stats:daily"
	jobBodyPrefix   = "email:job:"       // scheduled body, keyed by job id
	retryBodyPrefix = "email:retry:body:" // retry body, keyed by job id
)

func queueKey(p job.Priority) string {
	switch p {
	case job.PriorityHigh:
		return "email:queue:high"
	case job.PriorityMedium:
		return "email:queue:medium"
	default:
		return "email:queue:low"
	}
}

func rateKey(provider string) string {
	return fmt.Sprintf("rate_limit:%s", provider)
}

// Client is the typed Redis wrapper every other component depends on.
type Client struct {
	*redis.Client

	enqueueScript *redis.Script
	ackScript     *redis.Script
	rateScript    *redis.Script
}

// New connects to Redis and prepares the Lua scripts used by every atomic
// operation named in spec §4.1.
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("broker: parse redis url: %w", err)
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 5
	opts.ConnMaxLifetime = time.Hour

	rc := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("broker: ping redis: %w", err)
	}

	c := &Client{
		Client:        rc,
		enqueueScript: redis.NewScript(enqueueLua),
		ackScript:     redis.NewScript(ackLua),
		rateScript:    redis.NewScript(tokenBucketLua),
	}
	return c, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies Redis reachability.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
