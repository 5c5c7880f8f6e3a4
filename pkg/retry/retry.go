package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	maxJitter         = 200 * time.Millisecond
)

type options struct {
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func() time.Duration
	retryIf    func(error) bool
}

type Option func(*options)

func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

// WithSleep replaces the delay function, letting tests record backoff
// durations instead of waiting them out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithRetryIf limits retries to errors the predicate accepts. Errors it
// rejects are propagated immediately, still unchanged.
func WithRetryIf(retryIf func(error) bool) Option {
	return func(o *options) {
		if retryIf != nil {
			o.retryIf = retryIf
		}
	}
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func defaultJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

// Do runs op with exponential backoff, making maxRetries+1 attempts in
// total. The delay before attempt k (k>=1) is baseDelay*2^(k-1) plus up to
// 200ms of jitter. The last error is returned unchanged so callers can
// branch on its kind.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		sleep:      defaultSleep,
		jitter:     defaultJitter,
		retryIf:    func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !o.retryIf(err) {
			break
		}

		// No delay after the final attempt
		if attempt == o.maxRetries {
			break
		}

		delay := o.baseDelay*(1<<uint(attempt)) + o.jitter()
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}

	return zero, lastErr
}
