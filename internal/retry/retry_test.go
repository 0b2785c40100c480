package retry_test

import (
	"testing"
	"time"

	"emaildispatch/internal/retry"
)

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{3, 80 * time.Second},
		{4, 160 * time.Second},
		{5, 300 * time.Second},
		{10, 300 * time.Second},
		{-1, 10 * time.Second},
	}

	for _, c := range cases {
		if got := retry.Backoff(c.attempt); got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}
