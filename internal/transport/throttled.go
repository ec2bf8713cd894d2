package transport

import (
	"context"
	"fmt"

	"github.com/notifyhub/mailqueue/internal/ratelimiter"
)

// Throttled wraps a Transport with per-category rate limiting.
type Throttled struct {
	next    Transport
	limiter *ratelimiter.CategoryLimiters
}

func NewThrottled(next Transport, limiter *ratelimiter.CategoryLimiters) *Throttled {
	return &Throttled{next: next, limiter: limiter}
}

func (t *Throttled) Send(ctx context.Context, msg Message) error {
	if err := t.limiter.Wait(ctx, msg.Category); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", ErrNotAttempted, err)
	}
	return t.next.Send(ctx, msg)
}

var _ Transport = (*Throttled)(nil)
