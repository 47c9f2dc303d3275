package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterTransientFailures(t *testing.T) {
	cb := NewCircuitBreaker("azure", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	now := time.Now()
	cb.now = func() time.Time { return now }

	failing := func(ctx context.Context) error { return NewTransientError(errors.New("503"), "") }
	require.Error(t, cb.Execute(context.Background(), failing))
	require.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Execute(context.Background(), failing))
	require.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Fatal("open breaker must not call through")
		return nil
	})
	require.True(t, IsDegraded(err))

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresPermanentFailures(t *testing.T) {
	cb := NewCircuitBreaker("azure", CircuitBreakerConfig{FailureThreshold: 1})
	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return NewPermanentError(errors.New("400"), "bad request")
		})
		require.Error(t, err)
	}
	require.Equal(t, StateClosed, cb.State())
}
