package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every request of a run, so the
// process as a whole stays under a request rate.
//
// ResilientCaller waits on it with the caller's context before each
// attempt, outside the per-attempt timeout.
type RateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.Mutex
	waited  time.Duration
	allowed int64
}

// NewRateLimiter creates a limiter admitting r requests per second with the
// given burst. A burst below 1 becomes ceil(r).
func NewRateLimiter(r float64, burst int) (*RateLimiter, error) {
	if r <= 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return nil, fmt.Errorf("rate must be positive, got %v", r)
	}
	if burst < 1 {
		burst = int(math.Ceil(r))
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(r), burst),
		now:     time.Now,
	}, nil
}

// Burst returns the bucket capacity.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}

// Wait blocks until a request may be sent or ctx is done. It fails at once
// when ctx expires before a token would be available.
func (r *RateLimiter) Wait(ctx context.Context) error {
	start := r.now()
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	waited := r.now().Sub(start)

	r.mu.Lock()
	r.waited += waited
	r.allowed++
	r.mu.Unlock()
	return nil
}

// Waited returns the total time callers spent waiting for tokens.
func (r *RateLimiter) Waited() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waited
}

// Allowed returns the number of requests admitted.
func (r *RateLimiter) Allowed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allowed
}
