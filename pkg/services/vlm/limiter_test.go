package vlm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Acquire(context.Background()))
}

func TestLimiterBlocksPastQuota(t *testing.T) {
	l := NewLimiter(2, time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterNeverExceedsQuotaInAnyWindow(t *testing.T) {
	const quota = 14
	window := time.Minute
	l := NewLimiter(quota, window)

	start := time.Now()
	var granted []time.Duration
	for ts := time.Duration(0); ts < 3*window; ts += 100 * time.Millisecond {
		if l.rl.AllowN(start.Add(ts), 1) {
			granted = append(granted, ts)
		}
	}

	first := 0
	for _, ts := range granted {
		if ts < window {
			first++
		}
	}
	assert.LessOrEqual(t, first, quota)
	assert.GreaterOrEqual(t, first, quota-1)

	require.Greater(t, len(granted), quota)
	for i := 0; i+quota < len(granted); i++ {
		assert.GreaterOrEqual(t, granted[i+quota]-granted[i], window,
			"grants %d..%d fit in one window", i, i+quota)
	}
}

func TestLimiterConcurrentAcquire(t *testing.T) {
	l := NewLimiter(5, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(ctx) == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
}

func TestLimiterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewLimiter(0, 0).Acquire(ctx), context.Canceled)
}
