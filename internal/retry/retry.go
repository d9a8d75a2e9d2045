// Package retry runs an operation with bounded exponential backoff.
//
// The delay before attempt n (n >= 2) is BaseDelay * 2^(n-2), without jitter.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is used when Options.MaxAttempts is not positive
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is used when Options.BaseDelay is not positive
	DefaultBaseDelay = 500 * time.Millisecond
)

// Options configures WithRetry.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether a failed attempt may be retried. Nil retries every error.
	Retryable func(error) bool
	Logger    *zap.Logger
	// Name identifies the operation in log entries.
	Name string
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// newBackOff builds the deterministic schedule base, 2*base, 4*base, ... capped at maxAttempts-1 retries.
func newBackOff(ctx context.Context, opts Options) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = opts.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(opts.MaxAttempts-1)), ctx)
}

// WithRetry runs op until it succeeds, a non-retryable error occurs, or MaxAttempts is exhausted.
// It returns the last observed error on failure.
func WithRetry[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.normalized()
	attempt := 0

	operation := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	notify := func(err error, delay time.Duration) {
		opts.Logger.Warn("retrying_operation",
			zap.String("operation", opts.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.MaxAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData(operation, newBackOff(ctx, opts), notify)
}

// Do is WithRetry for operations without a result.
func Do(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	_, err := WithRetry(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
