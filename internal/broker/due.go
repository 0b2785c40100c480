package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"emaildispatch/internal/job"
)

// ProcessDueRetries promotes every retry-set entry whose due time has
// passed back onto its priority stream, storing the job's retry count on
// the way. Grounded on original_source/redis_client_lib/redis_client.py's
// process_retry_queue, with the "would need job data stored separately"
// gap it flags resolved by the retry body key (internal/broker.Ack).
//
// Promotion goes through the real, dedup-checked Enqueue (spec §4.4:
// "achieved by using the atomic enqueue, which is idempotent on job_id,
// and removing from the retry set only after a successful append").
// ackLua already SREMs the job's dedup entry when it enters RETRY, so
// this re-enqueue is never falsely rejected; a crash between the append
// and the ZRem/Del below just means the next tick's Enqueue sees the
// dedup entry it re-registered and returns ErrDuplicate, which is
// treated as a successful append for cleanup purposes.
func (c *Client) ProcessDueRetries(ctx context.Context, dedupTTL time.Duration) (promoted int, err error) {
	now := time.Now().Unix()

	ids, err := c.ZRangeByScore(ctx, keyRetry, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("broker: scan due retries: %w", err)
	}

	for _, id := range ids {
		body, err := c.Get(ctx, retryBodyPrefix+id).Result()
		if err == redis.Nil {
			c.ZRem(ctx, keyRetry, id)
			continue
		}
		if err != nil {
			return promoted, fmt.Errorf("broker: get retry body %s: %w", id, err)
		}

		j, err := job.Unmarshal([]byte(body))
		if err != nil {
			c.ZRem(ctx, keyRetry, id)
			c.Del(ctx, retryBodyPrefix+id)
			continue
		}
		j.Status = job.StatusPending

		if _, err := c.Enqueue(ctx, j, dedupTTL); err != nil && !errors.Is(err, ErrDuplicate) {
			return promoted, fmt.Errorf("broker: re-enqueue retry %s: %w", id, err)
		}

		c.ZRem(ctx, keyRetry, id)
		c.Del(ctx, retryBodyPrefix+id)
		promoted++
	}

	return promoted, nil
}

// PromoteScheduled moves every ScheduledSet entry whose send time has
// passed onto its priority stream, via the same dedup-checked Enqueue
// path as ProcessDueRetries. A scheduled job was never dedup-registered
// by EnqueueScheduled, so Enqueue here is the first time its id is added
// to the dedup set and a crash before ZRem/Del below only risks a
// harmless ErrDuplicate on the next tick, not a second send. A due entry
// whose paired body expired is dropped silently (preserving the
// distilled behavior) but counted so the caller can increment the
// scheduled_job_body_expired_total metric (spec §9 Open Question
// resolution).
func (c *Client) PromoteScheduled(ctx context.Context, dedupTTL time.Duration) (promoted, expired int, err error) {
	now := time.Now().Unix()

	ids, err := c.ZRangeByScore(ctx, keyScheduled, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("broker: scan due scheduled: %w", err)
	}

	for _, id := range ids {
		body, err := c.Get(ctx, jobBodyPrefix+id).Result()
		if err == redis.Nil {
			c.ZRem(ctx, keyScheduled, id)
			expired++
			continue
		}
		if err != nil {
			return promoted, expired, fmt.Errorf("broker: get scheduled body %s: %w", id, err)
		}

		j, err := job.Unmarshal([]byte(body))
		if err != nil {
			c.ZRem(ctx, keyScheduled, id)
			c.Del(ctx, jobBodyPrefix+id)
			continue
		}
		j.Status = job.StatusPending
		j.ScheduledAt = nil

		if _, err := c.Enqueue(ctx, j, dedupTTL); err != nil && !errors.Is(err, ErrDuplicate) {
			return promoted, expired, fmt.Errorf("broker: promote scheduled %s: %w", id, err)
		}

		c.ZRem(ctx, keyScheduled, id)
		c.Del(ctx, jobBodyPrefix+id)
		promoted++
	}

	return promoted, expired, nil
}

// ClaimStale reclaims pending stream entries idle longer than minIdle
// across every priority stream via XAUTOCLAIM, making consumer their
// owner, and returns how many were claimed. The entries stay pending:
// Dequeue reads only new entries (">"), so it does not return them, and
// an entry that stays idle past minIdle is claimed and counted again on
// a later call.
func (c *Client) ClaimStale(ctx context.Context, consumer string, minIdle time.Duration) (int, error) {
	total := 0
	for _, p := range job.Priorities {
		stream := queueKey(p)
		start := "0-0"
		for {
			msgs, next, err := c.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   stream,
				Group:    ConsumerGroup,
				Consumer: consumer,
				MinIdle:  minIdle,
				Start:    start,
				Count:    100,
			}).Result()
			if err != nil {
				if err == redis.Nil {
					break
				}
				return total, fmt.Errorf("broker: claim stale on %s: %w", stream, err)
			}
			total += len(msgs)
			if next == "0-0" || len(msgs) == 0 {
				break
			}
			start = next
		}
	}
	return total, nil
}
