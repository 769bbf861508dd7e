package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter spaces provider calls so consecutive sends sit at least
// 1/messagesPerSecond apart. Burst is fixed at 1: the first call passes
// immediately, every later call waits out the interval.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(messagesPerSecond float64) *RateLimiter {
	if messagesPerSecond <= 0 {
		messagesPerSecond = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
	}
}

// Wait blocks the calling goroutine until the next send slot. It returns
// early only when ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
