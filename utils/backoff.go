package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// ReconnectConfig bounds the exponential backoff used when a live source has to be reopened.
type ReconnectConfig struct {
	MaxRetries    int           `json:"max_retries"`
	RetryDelay    time.Duration `json:"retry_delay"`
	MaxRetryDelay time.Duration `json:"max_retry_delay"`
}

// DefaultReconnectConfig returns five retries starting at one second and capped at thirty.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ErrRetriesExhausted is returned by Backoff.Retry once the retry budget is spent.
var ErrRetriesExhausted = errors.New("max retries exceeded")

// Backoff computes and waits out retry delays of RetryDelay * 2^(attempt-1), capped at
// MaxRetryDelay.
type Backoff struct {
	cfg   ReconnectConfig
	clock clock.Clock
}

// NewBackoff returns a Backoff timed by the given clock. A nil clock means the wall clock.
func NewBackoff(cfg ReconnectConfig, clk clock.Clock) *Backoff {
	if clk == nil {
		clk = clock.New()
	}
	return &Backoff{cfg: cfg, clock: clk}
}

// Delay returns the wait before the given 1-based attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Stop doubling once past the cap so the shift cannot overflow.
	delay := b.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.cfg.MaxRetryDelay > 0 && delay >= b.cfg.MaxRetryDelay {
			return b.cfg.MaxRetryDelay
		}
	}
	if b.cfg.MaxRetryDelay > 0 && delay > b.cfg.MaxRetryDelay {
		return b.cfg.MaxRetryDelay
	}
	return delay
}

// Retry calls fn until it succeeds, the context is cancelled, or MaxRetries attempts have
// failed. onRetry, if set, is called before every wait with the previous failure (nil before
// the first attempt). The returned error wraps ErrRetriesExhausted when the budget runs out.
func (b *Backoff) Retry(
	ctx context.Context,
	fn func(context.Context) error,
	onRetry func(attempt int, delay time.Duration, err error),
) error {
	_, err := b.RetryFrom(ctx, 1, fn, onRetry)
	return err
}

// RetryFrom is Retry with attempts numbered from first, for callers that carry a failure count
// across calls. It returns the number of the last attempt made, first-1 if none was. When first
// is already past MaxRetries nothing is attempted and ErrRetriesExhausted is returned.
func (b *Backoff) RetryFrom(
	ctx context.Context,
	first int,
	fn func(context.Context) error,
	onRetry func(attempt int, delay time.Duration, err error),
) (int, error) {
	if first < 1 {
		first = 1
	}
	var lastErr error
	attempt := first
	for ; attempt <= b.cfg.MaxRetries; attempt++ {
		delay := b.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}

		timer := b.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt - 1, ctx.Err()
		case <-timer.C:
		}

		if lastErr = fn(ctx); lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
	}
	if lastErr == nil {
		return attempt - 1, ErrRetriesExhausted
	}
	return attempt - 1, errors.Wrapf(ErrRetriesExhausted, "after %d attempts: %v", b.cfg.MaxRetries, lastErr)
}
