package verify

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source used by Throttle. Tests substitute a fake.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Throttle spaces validator calls: after a call reaches the external service, the
// next one starts no sooner than delay later. Calls are serialized.
//
// A result served from a cache does not arm the delay. Failed calls do.
type Throttle struct {
	next  Validator
	delay time.Duration
	clock Clock

	mu    sync.Mutex
	last  time.Time
	armed bool
}

// NewThrottle wraps next. A nil clock means SystemClock; delay <= 0 disables waiting.
func NewThrottle(next Validator, delay time.Duration, clock Clock) *Throttle {
	if clock == nil {
		clock = SystemClock
	}
	if delay < 0 {
		delay = 0
	}
	return &Throttle{next: next, delay: delay, clock: clock}
}

// Delay reports the configured spacing.
func (t *Throttle) Delay() time.Duration {
	return t.delay
}

func (t *Throttle) Validate(ctx context.Context, address string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed && t.delay > 0 {
		if wait := t.delay - t.clock.Now().Sub(t.last); wait > 0 {
			if err := t.clock.Sleep(ctx, wait); err != nil {
				return Result{Address: address, Status: StatusUnknown}, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{Address: address, Status: StatusUnknown}, err
	}

	res, err := t.next.Validate(ctx, address)
	if err != nil || !res.Cached {
		t.last = t.clock.Now()
		t.armed = true
	}
	return res, err
}
