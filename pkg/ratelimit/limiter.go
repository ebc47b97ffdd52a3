package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter spaces out outgoing requests with a token bucket.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter allows rps requests per second with the given burst. A
// non-positive rps disables throttling.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limiter{bucket: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Allow reports whether a request may be sent now without waiting.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
