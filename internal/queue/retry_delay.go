package queue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryDelay maps the attempt count after a failure to how long the message
// should wait before it is eligible again.
type RetryDelay func(attempts int) time.Duration

// ExponentialRetryDelay returns a deterministic exponential policy: initial
// after the first failure, growing by backoff's default multiplier, capped
// at max.
func ExponentialRetryDelay(initial, max time.Duration) RetryDelay {
	return func(attempts int) time.Duration {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()

		d := b.NextBackOff()
		for i := 1; i < attempts; i++ {
			d = b.NextBackOff()
		}
		return d
	}
}
