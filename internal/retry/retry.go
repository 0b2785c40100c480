// Package retry holds the backoff policy used by the broker's ack path
// to compute a job's retry due time, grounded on
// original_source/redis_client_lib/redis_client.py's ack_email backoff.
package retry

import "time"

// DefaultMaxAttempts is the retry ceiling before a job moves to the dead
// letter set (spec §4.4).
const DefaultMaxAttempts = 3

// maxBackoff caps the exponential growth at five minutes.
const maxBackoff = 300 * time.Second

// Backoff returns the delay for failure n, following min(300, 10*2^n)
// seconds. The broker's ack path passes the job's retry count after
// incrementing it, so the first failure uses n=1 (20s); negative n is
// treated as 0.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 10 * time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
