package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// CategoryLimiters holds one token bucket limiter per message category.
// Limiters are created on first use since categories are opaque strings.
// Burst equals the rate so no capacity is saved up beyond one second's worth.
type CategoryLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// New creates a CategoryLimiters with ratePerSec tokens per second per category.
// A non-positive rate disables limiting.
func New(ratePerSec int) *CategoryLimiters {
	cl := &CategoryLimiters{
		limit:    rate.Inf,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
	if ratePerSec > 0 {
		cl.limit = rate.Limit(ratePerSec)
		cl.burst = ratePerSec
	}
	return cl
}

// Wait blocks until the category's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *CategoryLimiters) Wait(ctx context.Context, category string) error {
	return cl.get(category).Wait(ctx)
}

func (cl *CategoryLimiters) get(category string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	l, ok := cl.limiters[category]
	if !ok {
		l = rate.NewLimiter(cl.limit, cl.burst)
		cl.limiters[category] = l
	}
	return l
}
