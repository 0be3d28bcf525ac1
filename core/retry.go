package core

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls core.Retry's exponential backoff.
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    float64
	JitterFrac float64 // fraction of delay to jitter by, e.g. 0.2 = ±20%
}

// DefaultRetryConfig is a sane exponential-backoff-with-jitter starting
// point for external capability calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Delay:      time.Second,
		Backoff:    2.0,
		JitterFrac: 0.2,
	}
}

// Retry is the single retrying-caller combinator applied at every
// external capability boundary (SourceClient.Fetch,
// EmbeddingProvider.EmbedBatch, LLMClient.Complete). It retries fn while
// the returned error classifies as transient, up to cfg.MaxRetries
// additional attempts, and gives up immediately on a non-retryable
// classification.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	delay := cfg.Delay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := jitter(delay, cfg.JitterFrac)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = time.Duration(float64(delay) * cfg.Backoff)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return Wrap(op, lastErr)
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	result := float64(d) + offset
	if result < 0 {
		return 0
	}
	return time.Duration(result)
}
