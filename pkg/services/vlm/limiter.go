package vlm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter bounds how many model requests start within a window. Requests are
// spaced evenly, one every window/n, so no window admits more than n. It is
// safe for concurrent use; Acquire blocks only the calling goroutine.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter allows n requests per window. n <= 0 means unlimited.
func NewLimiter(n int, window time.Duration) *Limiter {
	if n <= 0 || window <= 0 {
		return &Limiter{}
	}
	interval := (window + time.Duration(n) - 1) / time.Duration(n)
	return &Limiter{rl: rate.NewLimiter(rate.Every(interval), 1)}
}

// Acquire waits for a request slot or for ctx to end. A slot that would only
// open after ctx's deadline is reported as context.DeadlineExceeded.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.rl == nil {
		return ctx.Err()
	}
	if err := l.rl.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}
	return nil
}
