package recon

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
)

// RateLimiter spaces probes at least 1/limit seconds apart across every
// goroutine sharing it. A burst of one means only the very first grant is
// immediate.
type RateLimiter struct {
	limiter *rate.Limiter
	metrics metrics.Recorder
}

// NewRateLimiter creates a limiter granting at most perSecond slots per
// second. perSecond must be positive and finite.
func NewRateLimiter(perSecond float64, rec metrics.Recorder) (*RateLimiter, error) {
	if perSecond <= 0 || math.IsNaN(perSecond) || math.IsInf(perSecond, 0) {
		return nil, errors.ErrConfigInvalid("rate_limit", perSecond)
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		metrics: rec,
	}, nil
}

// Acquire blocks until the caller may issue one probe or ctx ends. Unlike
// rate.Limiter.Wait it does not fail early when ctx's deadline falls before
// the slot; it waits for whichever comes first.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { l.metrics.ObserveRateLimitWait(time.Since(start)) }()

	r := l.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Interval is the minimum spacing between grants.
func (l *RateLimiter) Interval() time.Duration {
	return time.Duration(float64(time.Second) / float64(l.limiter.Limit()))
}
