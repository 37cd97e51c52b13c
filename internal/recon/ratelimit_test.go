package recon

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
	metricsmocks "github.com/anstrom/reconnoiter/internal/metrics/mocks"
)

func TestNewRateLimiter_RejectsNonPositive(t *testing.T) {
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		l, err := NewRateLimiter(rate, nil)
		assert.Nil(t, l, "rate %v", rate)
		require.Error(t, err, "rate %v", rate)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
	}
}

func TestRateLimiter_Interval(t *testing.T) {
	l, err := NewRateLimiter(4, metrics.Nop{})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, l.Interval())
}

func TestRateLimiter_SpacesConcurrentCallers(t *testing.T) {
	l, err := NewRateLimiter(20, nil)
	require.NoError(t, err)

	const callers = 8
	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, callers)
	first, last := grants[0], grants[0]
	for _, g := range grants {
		if g.Before(first) {
			first = g
		}
		if g.After(last) {
			last = g
		}
	}
	// Seven gaps of 50ms, with a little slack for timer granularity.
	assert.GreaterOrEqual(t, last.Sub(first), 340*time.Millisecond)
}

func TestRateLimiter_AcquireHonorsCancel(t *testing.T) {
	l, err := NewRateLimiter(0.5, nil)
	require.NoError(t, err)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "waits for the deadline rather than failing early")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiter_RecordsWait(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := metricsmocks.NewMockRecorder(ctrl)
	rec.EXPECT().ObserveRateLimitWait(gomock.Any()).Times(2)

	l, err := NewRateLimiter(100, rec)
	require.NoError(t, err)
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
}
