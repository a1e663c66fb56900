package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/core"
)

var fastRetry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestWithRetry_RetriesContentionOnly(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), fastRetry, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, core.Contention("lock bin", errors.New("timeout"))
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = withRetry(context.Background(), fastRetry, func() (int, error) {
		calls++
		return 0, core.ErrCapacityExceeded
	})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	assert.Equal(t, 1, calls, "business outcomes are terminal")
}

func TestWithRetry_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), fastRetry, func() (struct{}, error) {
		calls++
		return struct{}{}, core.Contention("lock", nil)
	})
	assert.Equal(t, core.KindContention, core.KindOf(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, RetryPolicy{Attempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}, func() (int, error) {
		calls++
		cancel()
		return 0, core.Contention("lock", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Attempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}.normalized()
	assert.Equal(t, 10*time.Millisecond, p.delay(1))
	assert.Equal(t, 20*time.Millisecond, p.delay(2))
	assert.Equal(t, 35*time.Millisecond, p.delay(3))
	assert.Equal(t, 35*time.Millisecond, p.delay(8))

	assert.Equal(t, DefaultRetryPolicy, RetryPolicy{}.normalized())
}
