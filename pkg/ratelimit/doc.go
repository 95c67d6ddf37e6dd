// Package ratelimit caps how often requests are sent.
//
// TokenBucket, built on golang.org/x/time/rate, backs the API client's
// per-minute quota. SlidingWindow counts requests within a moving window
// and is used to pace dataset upload batches.
//
//	limiter := ratelimit.PerMinute(120)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // ctx was cancelled while waiting
//	}
package ratelimit
