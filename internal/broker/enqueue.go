package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"emaildispatch/internal/job"
)

// Enqueue appends j onto its priority stream, guarded by the dedup set.
// Returns ErrDuplicate if j.ID has already been queued within the dedup
// TTL window.
func (c *Client) Enqueue(ctx context.Context, j *job.Job, dedupTTL time.Duration) (string, error) {
	body, err := j.Marshal()
	if err != nil {
		return "", fmt.Errorf("broker: marshal job: %w", err)
	}

	res, err := c.enqueueScript.Run(ctx, c.Client,
		[]string{queueKey(j.Priority), keyDedup},
		j.ID, body, int(dedupTTL.Seconds()),
	).Result()
	if err != nil {
		return "", fmt.Errorf("broker: enqueue: %w", err)
	}

	streamID, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("broker: enqueue: unexpected script result %v", res)
	}
	if streamID == "DUPLICATE" {
		return "", ErrDuplicate
	}
	return streamID, nil
}

// EnqueueScheduled stores j's body for later promotion and records its
// due time in the scheduled sorted set (spec §3 ScheduledSet / §6
// email:scheduled + email:job:{id}).
func (c *Client) EnqueueScheduled(ctx context.Context, j *job.Job, bodyTTL time.Duration) error {
	if j.ScheduledAt == nil {
		return fmt.Errorf("broker: job %s has no scheduled time", j.ID)
	}

	body, err := j.Marshal()
	if err != nil {
		return fmt.Errorf("broker: marshal job: %w", err)
	}

	pipe := c.TxPipeline()
	pipe.Set(ctx, jobBodyPrefix+j.ID, body, bodyTTL)
	pipe.ZAdd(ctx, keyScheduled, redis.Z{Score: float64(j.ScheduledAt.Unix()), Member: j.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broker: enqueue scheduled: %w", err)
	}
	return nil
}

// Dequeue scans priority streams HIGH then MEDIUM then LOW, returning the
// first non-empty batch (spec §4.1 "priority scan").  Consumer groups are
// created lazily with MKSTREAM, ignoring BUSYGROUP the way
// original_source's dequeue_email does.
func (c *Client) Dequeue(ctx context.Context, consumer string, count int64) ([]*job.Job, error) {
	for _, p := range job.Priorities {
		stream := queueKey(p)

		if err := c.XGroupCreateMkStream(ctx, stream, ConsumerGroup, "0").Err(); err != nil &&
			!isBusyGroup(err) {
			return nil, fmt.Errorf("broker: create group for %s: %w", stream, err)
		}

		res, err := c.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    count,
			Block:    100 * time.Millisecond,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("broker: dequeue from %s: %w", stream, err)
		}

		var jobs []*job.Job
		for _, s := range res {
			for _, msg := range s.Messages {
				raw, ok := msg.Values["job"].(string)
				if !ok {
					continue
				}
				j, err := job.Unmarshal([]byte(raw))
				if err != nil {
					continue
				}
				j.StreamID = msg.ID
				jobs = append(jobs, j)
			}
		}
		if len(jobs) > 0 {
			return jobs, nil
		}
	}
	return nil, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
