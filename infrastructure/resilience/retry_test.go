package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsFirstTry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

	err := Retry(context.Background(), cfg, func() error {
		return nil
	})

	require.NoError(t, err)
}

func TestRetry_EventualSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("rpc: timeout")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	testErr := errors.New("rpc: connection refused")

	err := Retry(context.Background(), cfg, func() error {
		return testErr
	})

	require.ErrorIs(t, err, testErr)
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		attempts++
		return errors.New("still failing")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, attempts, 5)
}
