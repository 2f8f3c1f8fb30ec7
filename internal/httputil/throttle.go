package httputil

import (
	"context"
	"time"
)

// DefaultDelay is the pause between successive page fetches.
const DefaultDelay = time.Second

// Throttle paces sequential requests so that consecutive requests are at
// least one delay apart. It never retries anything.
type Throttle struct {
	delay time.Duration
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	last  time.Time
}

// NewThrottle returns a throttle with a fixed delay. A zero delay disables waiting.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{
		delay: max(delay, 0),
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Delay returns the configured pause.
func (t *Throttle) Delay() time.Duration {
	if t == nil {
		return 0
	}
	return t.delay
}

// Wait blocks until one delay has passed since the previous request finished.
// The first call never blocks.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.last.IsZero() {
		return nil
	}
	remaining := t.Delay() - t.now().Sub(t.last)
	if remaining <= 0 {
		return nil
	}
	return t.sleep(ctx, remaining)
}

// Done marks the end of a request.
func (t *Throttle) Done() {
	if t == nil {
		return
	}
	t.last = t.now()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
