package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket refills at a steady rate and lets up to burst requests
// through at once
type TokenBucket struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	limiter *rate.Limiter
}

// NewTokenBucket creates a bucket that refills every interval and holds
// at most burst tokens. It starts full.
func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Every(interval)
	return &TokenBucket{
		limit:   limit,
		burst:   burst,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// PerMinute returns a limiter for n requests per minute, or nil when n is
// not positive. A full minute's quota may be spent at once.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return nil
	}
	return NewTokenBucket(time.Minute/time.Duration(n), n)
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

// Wait reserves a token and sleeps until it is due. A cancelled wait
// returns the token and ctx's error.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	r := tb.current().Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return tb.limiter
}
