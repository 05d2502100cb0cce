// Package retry wraps flaky remote-automation calls with bounded exponential
// backoff and paces interactive actions with a randomized throttle.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy is a bounded exponential backoff. The zero value is usable and
// falls back to 3 tries starting at 1s, doubling, with 10% jitter.
type Policy struct {
	// Tries is the total number of attempts, including the first.
	Tries   int
	Delay   time.Duration
	Backoff float64
	// Jitter spreads each wait by ±Jitter of its length.
	Jitter float64
	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except context cancellation.
	Retryable func(error) bool

	// Sleep and Rand are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// Default returns the standard policy.
func Default() Policy {
	return Policy{Tries: 3, Delay: time.Second, Backoff: 2, Jitter: 0.1}
}

func (p Policy) normalized() Policy {
	if p.Tries <= 0 {
		p.Tries = 3
	}
	if p.Delay <= 0 {
		p.Delay = time.Second
	}
	if p.Backoff < 1 {
		p.Backoff = 2
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = notCanceled
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

func notCanceled(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn until it succeeds, returns a non-retryable error, or runs out
// of tries. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	p = p.normalized()

	wait := p.Delay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.Tries || !p.Retryable(err) {
			return err
		}

		d := spread(wait, p.Jitter, p.Rand())
		slog.WarnContext(ctx, "retrying operation",
			"operation", name,
			"attempt", attempt,
			"tries", p.Tries,
			"wait_s", d.Seconds(),
			"error", err,
		)
		if sleepErr := p.Sleep(ctx, d); sleepErr != nil {
			return err
		}
		wait = time.Duration(float64(wait) * p.Backoff)
	}
}

// DoValue is Do for functions returning a value.
func DoValue[T any](ctx context.Context, p Policy, name string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// spread scales d by a factor in [1-jitter, 1+jitter] picked by r in [0,1).
func spread(d time.Duration, jitter, r float64) time.Duration {
	if jitter == 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + jitter*(2*r-1)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
