// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs calls with exponential backoff and jitter.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Jitter returns the random component added to each backoff step. Tests
// override it to remove randomness.
var Jitter = func() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}

// Policy describes how many times to try a call and how long to wait in
// between. The delay before retry n (0-based) is BaseDelay * 2^n + Jitter().
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay returns the backoff before the retry following the given 0-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt)))*p.BaseDelay + Jitter()
}

// Do calls fn until it succeeds, returns an error that retryable rejects, or
// MaxAttempts calls have been made. It returns the number of calls made and
// the last error. A cancelled context during a backoff wait returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		if retryable == nil || !retryable(err) {
			return attempt + 1, err
		}
		if attempt+1 >= maxAttempts {
			return attempt + 1, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}
}
