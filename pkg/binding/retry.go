package binding

import (
	"context"
	"math"
	"time"
)

// RetryPolicy controls how HTTP requests are retried.
type RetryPolicy struct {
	MaxRetries          int
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	Multiplier          float64
	RetryableStatus     []int
	RetryOnNetworkError bool
}

// DefaultRetryPolicy returns 3 retries with exponential backoff from 1s to 30s,
// retrying 408, 429 and 5xx gateway statuses and network errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          3,
		InitialDelay:        time.Second,
		MaxDelay:            30 * time.Second,
		Multiplier:          2,
		RetryableStatus:     []int{408, 429, 500, 502, 503, 504},
		RetryOnNetworkError: true,
	}
}

// NoRetry disables retries.
func NoRetry() RetryPolicy { return RetryPolicy{} }

// Backoff returns the delay before retry number attempt (starting at 1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Retryable reports whether a response status should be retried.
func (p RetryPolicy) Retryable(status int) bool {
	for _, s := range p.RetryableStatus {
		if s == status {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
