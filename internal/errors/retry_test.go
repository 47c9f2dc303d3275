package errors

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryWithResultRecoversFromTransientErrors(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("503"), "unavailable")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResultStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewPermanentError(errors.New("401"), "bad key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
}

func TestRetryWithResultGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("429"), "rate limited")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.True(t, IsTransient(err))
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(), func(ctx context.Context) error {
		t.Fatal("function must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 10*time.Second, calculateBackoff(5, cfg))
}

func TestClassification(t *testing.T) {
	assert.True(t, IsTransient(FromHTTPStatus(errors.New("boom"), http.StatusTooManyRequests, "")))
	assert.True(t, IsTransient(FromHTTPStatus(errors.New("boom"), http.StatusBadGateway, "")))
	assert.True(t, IsPermanent(FromHTTPStatus(errors.New("boom"), http.StatusUnauthorized, "")))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.Equal(t, ErrorTypeDegraded, GetErrorType(NewDegradedError(errors.New("open"), "")))
	assert.Equal(t, ErrorTypePermanent, GetErrorType(errors.New("something odd")))
	assert.Equal(t, http.StatusBadGateway, StatusCode(FromHTTPStatus(errors.New("x"), http.StatusBadGateway, "")))
}
