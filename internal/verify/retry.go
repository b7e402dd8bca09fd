package verify

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries     int
	RequestTimeout time.Duration

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64

	// MinDelay is the least time waited before a retry, whatever the backoff. Set it to
	// the validation delay so a retry reaches the service no sooner than a new call would.
	MinDelay time.Duration

	// Clock defaults to SystemClock.
	Clock Clock
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 10 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	return o
}

type retrying struct {
	next Validator
	opts RetryOptions
}

// WithRetry retries transient failures of next with exponential backoff. Each attempt
// gets its own RequestTimeout when set. Non-transient errors are returned at once.
func WithRetry(next Validator, opts RetryOptions) Validator {
	return &retrying{next: next, opts: opts.withDefaults()}
}

func (r *retrying) Validate(ctx context.Context, address string) (Result, error) {
	var lastRes Result
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastRes, err
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if r.opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, r.opts.RequestTimeout)
		}
		res, err := r.next.Validate(withAttempt(reqCtx, attempt+1), address)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return res, nil
		}
		lastRes, lastErr = res, err
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return lastRes, ctx.Err()
		}
		if !IsTransient(err) || attempt >= RetryBudget(r.opts.MaxRetries, err) {
			return lastRes, lastErr
		}

		sleep := BackoffDelay(r.opts.BackoffInitial, r.opts.BackoffMax, r.opts.BackoffJitterFrac, attempt)
		if sleep < r.opts.MinDelay {
			sleep = r.opts.MinDelay
		}
		if err := r.opts.Clock.Sleep(ctx, sleep); err != nil {
			return lastRes, err
		}
	}
}

// BackoffDelay is the sleep before retry attempt+1: initial doubled per attempt, capped
// at max, with +/- jitterFrac applied.
func BackoffDelay(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}

type attemptKey struct{}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

// attemptFrom returns the 1-based attempt number set by WithRetry, or 1.
func attemptFrom(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok && n > 0 {
		return n
	}
	return 1
}
