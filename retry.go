package apiclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	internalbackoff "github.com/shopfront-dev/apiclient/internal/backoff"
)

// Built-in retry defaults.
const (
	DefaultRetryCount        = 0
	DefaultInitialBackoff    = 100 * time.Millisecond
	DefaultBackoffMultiplier = 2.0
)

// ShouldRetryFunc decides whether a classified failure is retried.
type ShouldRetryFunc func(err *APIError) bool

// DelayFunc returns the wait after the given zero-based attempt.
type DelayFunc func(attempt int) time.Duration

// RetryConfig is the retry policy of a client or of a single call.
type RetryConfig struct {
	// Count is the maximum number of retries after the first attempt.
	Count int
	// ShouldRetry defaults to DefaultShouldRetry.
	ShouldRetry ShouldRetryFunc
	// Delay defaults to DefaultDelay.
	Delay DelayFunc
}

// DefaultRetryConfig returns the built-in policy: no retries, retry on 5xx,
// exponential backoff from 100ms doubling per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Count:       DefaultRetryCount,
		ShouldRetry: DefaultShouldRetry,
		Delay:       DefaultDelay,
	}
}

// DefaultShouldRetry retries any failure whose status is 500 or above.
func DefaultShouldRetry(err *APIError) bool {
	return err != nil && err.StatusCode() >= 500
}

var defaultDelayCalculator = internalbackoff.NewCalculator(internalbackoff.Exponential{}, internalbackoff.Params{
	Initial:    DefaultInitialBackoff,
	Multiplier: DefaultBackoffMultiplier,
})

// DefaultDelay returns 100ms * 2^attempt.
func DefaultDelay(attempt int) time.Duration {
	return defaultDelayCalculator.Delay(attempt)
}

// ExponentialDelay returns initial * multiplier^attempt capped at maxDelay, with
// up to jitter*delay of random noise added. A non-positive maxDelay disables
// the cap.
func ExponentialDelay(initial, maxDelay time.Duration, multiplier, jitter float64) DelayFunc {
	calc := internalbackoff.NewCalculator(internalbackoff.Exponential{}, internalbackoff.Params{
		Initial:    initial,
		Max:        maxDelay,
		Multiplier: multiplier,
		Jitter:     jitter,
	})
	return calc.Delay
}

// DecorrelatedDelay draws each delay from [initial, min(maxDelay, initial*3^attempt)].
func DecorrelatedDelay(initial, maxDelay time.Duration) DelayFunc {
	calc := internalbackoff.NewCalculator(internalbackoff.Decorrelated{}, internalbackoff.Params{
		Initial: initial,
		Max:     maxDelay,
	})
	return calc.Delay
}

// BackOffDelay adapts a cenkalti/backoff policy. newBackOff must return a
// fresh policy on every call; the delay for attempt n is the (n+1)th
// NextBackOff of that policy. backoff.Stop is reported as zero delay.
func BackOffDelay(newBackOff func() backoff.BackOff) DelayFunc {
	return func(attempt int) time.Duration {
		b := newBackOff()
		b.Reset()
		next := b.NextBackOff()
		for i := 0; i < attempt && next != backoff.Stop; i++ {
			next = b.NextBackOff()
		}
		if next == backoff.Stop {
			return 0
		}
		return next
	}
}

// resolve fills missing functions from the built-in defaults.
func (r RetryConfig) resolve() RetryConfig {
	if r.ShouldRetry == nil {
		r.ShouldRetry = DefaultShouldRetry
	}
	if r.Delay == nil {
		r.Delay = DefaultDelay
	}
	return r
}

// effectiveRetry picks the per-call override, else the configured default,
// else the built-in policy.
func effectiveRetry(perCall, configured *RetryConfig) RetryConfig {
	switch {
	case perCall != nil:
		return perCall.resolve()
	case configured != nil:
		return configured.resolve()
	default:
		return DefaultRetryConfig()
	}
}

// wait sleeps for d or until ctx is done. The timer is stopped on both paths.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
