package provisioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		Jitter:      0,
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	// Экспонента упирается в потолок
	assert.Equal(t, time.Second, p.Delay(10))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retry(context.Background(), testPolicy(), func() error {
		calls++
		if calls < 3 {
			return &UnavailableError{Cause: errors.New("connection refused")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := retry(context.Background(), testPolicy(), func() error {
		calls++
		return ErrRemoteNotFound
	})

	assert.ErrorIs(t, err, ErrRemoteNotFound)
	// Пропавший аккаунт не ретраится
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry(context.Background(), testPolicy(), func() error {
		calls++
		return &UnavailableError{Cause: errors.New("503")}
	})

	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestRetry_RespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry(ctx, testPolicy(), func() error {
		calls++
		return &UnavailableError{Cause: errors.New("boom")}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&UnavailableError{Cause: errors.New("x")}))
	assert.False(t, IsRetryable(ErrRemoteNotFound))
	assert.False(t, IsRetryable(errors.New("прочее")))
	assert.False(t, IsRetryable(nil))
}
