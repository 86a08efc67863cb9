package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shanehull/leakwatch/internal/errors"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond, Backoff: 2}
	calls := 0

	err := p.Do(context.Background(), newLimiter(0), zaptest.NewLogger(t).Sugar(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.Transient(errors.New("reset"), "fetch")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	p := RetryPolicy{Attempts: 2, Delay: time.Millisecond, Backoff: 2}
	calls := 0

	err := p.Do(context.Background(), newLimiter(0), zaptest.NewLogger(t).Sugar(), func(context.Context) error {
		calls++
		return errors.Transient(errors.New("reset"), "fetch")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransient))
	assert.Equal(t, 2, calls)
}

func TestRetryNeverRetriesAuth(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Delay: time.Millisecond, Backoff: 2}
	calls := 0

	err := p.Do(context.Background(), newLimiter(0), zaptest.NewLogger(t).Sugar(), func(context.Context) error {
		calls++
		return errors.Auth(errors.New("status 401"), "fetch")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuth))
	assert.Equal(t, 1, calls)
}

func TestRetryBackoffSleepHonoursCancellation(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Hour, Backoff: 2}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	calls := 0
	err := p.Do(ctx, newLimiter(0), zaptest.NewLogger(t).Sugar(), func(context.Context) error {
		calls++
		return errors.Transient(errors.New("reset"), "fetch")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestLimiterPacesAttempts(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: 0, Backoff: 1}
	limiter := newLimiter(20 * time.Millisecond)

	start := time.Now()
	calls := 0
	err := p.Do(context.Background(), limiter, zaptest.NewLogger(t).Sugar(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.Transient(errors.New("reset"), "fetch")
		}
		return nil
	})
	require.NoError(t, err)
	// the first token is free, the next two wait a full interval each
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}
