package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Backoff bounds the retries of one call.
type Backoff struct {
	// Attempts counts the first try. 1 disables retries.
	Attempts int

	Base time.Duration
	Max  time.Duration

	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64

	// Retryable overrides Temporary when set.
	Retryable func(err error) bool
}

// DefaultBackoff suits a rate-limited public API: three tries, 1s then 2s.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Base: time.Second, Max: 10 * time.Second, Jitter: 0.2}
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs
// out of attempts or ctx ends. The last error is returned.
func Retry[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.withDefaults()
	retryable := b.Retryable
	if retryable == nil {
		retryable = Temporary
	}

	var zero T
	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt == b.Attempts-1 {
			break
		}

		wait := b.delay(attempt)
		zap.L().Debug("resilience: retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
	return zero, err
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 1
	}
	if b.Base <= 0 {
		b.Base = 100 * time.Millisecond
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
