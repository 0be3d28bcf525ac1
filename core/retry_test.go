package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, Delay: time.Millisecond, Backoff: 1.0}
	attempts := 0

	err := Retry(context.Background(), cfg, "op", func() error {
		attempts++
		if attempts < 3 {
			return NewError("op", KindTransient, "retry me", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, Delay: time.Millisecond, Backoff: 1.0}
	attempts := 0

	err := Retry(context.Background(), cfg, "op", func() error {
		attempts++
		return NewError("op", KindInvalidContent, "bad content", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, Delay: time.Millisecond, Backoff: 1.0}
	attempts := 0

	err := Retry(context.Background(), cfg, "op", func() error {
		attempts++
		return NewError("op", KindTransient, "down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, Delay: 50 * time.Millisecond, Backoff: 1.0}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, "op", func() error {
		attempts++
		return NewError("op", KindTransient, "down", nil)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || attempts < 5)
}
