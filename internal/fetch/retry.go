package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/errors"
)

// RetryPolicy retries a batch request with exponential backoff.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

func retryPolicyFrom(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{Attempts: cfg.Attempts, Delay: cfg.Delay, Backoff: cfg.Backoff}
}

// Do calls fn until it succeeds, the attempts run out, fn returns an auth
// error, or ctx is done. Every attempt first waits on limiter, so pacing
// applies to failed requests too.
func (p RetryPolicy) Do(ctx context.Context, limiter *rate.Limiter, log *zap.SugaredLogger, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return errors.Wrap(err, "wait for request slot")
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, errors.ErrAuth) || ctx.Err() != nil {
			return err
		}

		if attempt < attempts {
			log.Warnw("Batch request failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff", delay,
				"error", err,
			)
			if !sleep(ctx, delay) {
				return lastErr
			}
			delay = time.Duration(float64(delay) * p.Backoff)
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// newLimiter allows one request per delay. A zero delay disables pacing.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
