package broker

import (
	"context"
	"fmt"
	"time"

	"emaildispatch/internal/job"
	"emaildispatch/internal/retry"
)

// Ack finalizes processing of j: on success the stream entry is acked and
// removed and the sent counter bumped; on failure the retry count is
// incremented and j either moves to the retry set (with backoff per
// internal/retry) or to the dead letter store. retriable distinguishes a
// transient failure (network timeout, 5xx, rate) from a permanent one
// (4xx auth, malformed address): a permanent failure always goes
// straight to the dead letter store regardless of retry count, while a
// retriable one only does once maxRetries is reached (spec §4.5 step 5 /
// §4.4). The whole transition runs as a single Lua script so the stream
// entry is never left dangling between states (spec §3 "a job is present
// in at most one of {live stream, retry set, dead-letter store}").
func (c *Client) Ack(ctx context.Context, j *job.Job, success, retriable bool, lastErr string, maxRetries int, retryBodyTTL, dlqTTL time.Duration) (job.Status, error) {
	if j.StreamID == "" {
		return "", fmt.Errorf("broker: ack: job %s has no stream id", j.ID)
	}

	willRetry := "0"
	retryDue := "0"
	newStatus := job.StatusSent

	if !success {
		j.RetryCount++
		j.LastError = lastErr
		if retriable && j.RetryCount < maxRetries {
			newStatus = job.StatusRetry
			willRetry = "1"
			retryDue = fmt.Sprintf("%d", time.Now().Add(retry.Backoff(j.RetryCount)).Unix())
		} else {
			newStatus = job.StatusDeadLetter
		}
	}
	j.Status = newStatus

	body, err := j.Marshal()
	if err != nil {
		return "", fmt.Errorf("broker: marshal job on ack: %w", err)
	}

	successFlag := "0"
	if success {
		successFlag = "1"
	}

	_, err = c.ackScript.Run(ctx, c.Client,
		[]string{queueKey(j.Priority), keyRetry, retryBodyPrefix + j.ID, keyDeadLetter, keyStatsDaily, keyDedup},
		ConsumerGroup, j.StreamID, successFlag, willRetry, j.ID, body, retryDue,
		int(retryBodyTTL.Seconds()), int(dlqTTL.Seconds()),
	).Result()
	if err != nil {
		return "", fmt.Errorf("broker: ack: %w", err)
	}

	return newStatus, nil
}
