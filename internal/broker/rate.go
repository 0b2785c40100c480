package broker

import (
	"context"
	"fmt"
	"time"
)

// CheckRate runs the token-bucket script for provider, consuming tokens if
// available. Returns true when the request is admitted.
func (c *Client) CheckRate(ctx context.Context, provider string, bucketSize, refillPerMin, tokensNeeded int) (bool, error) {
	res, err := c.rateScript.Run(ctx, c.Client,
		[]string{rateKey(provider)},
		bucketSize, refillPerMin, tokensNeeded, time.Now().Unix(),
	).Result()
	if err != nil {
		return false, fmt.Errorf("broker: check rate for %s: %w", provider, err)
	}

	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("broker: check rate: unexpected script result %v", res)
	}
	return allowed == 1, nil
}
