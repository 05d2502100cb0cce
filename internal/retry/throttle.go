package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// DefaultSpread is the throttle's randomization around its delay.
const DefaultSpread = 0.2

// Throttle sleeps a randomized delay before interactive actions. A zero
// Delay disables it.
type Throttle struct {
	Delay  time.Duration
	Spread float64

	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// NewThrottle returns a throttle around delay with the default spread.
func NewThrottle(delay time.Duration) Throttle {
	return Throttle{Delay: delay, Spread: DefaultSpread}
}

// Wait blocks for the throttle delay or until ctx is done.
func (t Throttle) Wait(ctx context.Context) error {
	if t.Delay <= 0 {
		return nil
	}
	sleep, rnd := t.Sleep, t.Rand
	if sleep == nil {
		sleep = sleepCtx
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	d := spread(t.Delay, t.Spread, rnd())
	slog.DebugContext(ctx, "throttling", "wait_s", d.Seconds())
	return sleep(ctx, d)
}
