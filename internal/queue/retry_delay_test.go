package queue_test

import (
	"testing"
	"time"

	"github.com/notifyhub/mailqueue/internal/queue"
)

func TestExponentialRetryDelay(t *testing.T) {
	delay := queue.ExponentialRetryDelay(time.Minute, 10*time.Minute)

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 90 * time.Second},
		{3, 135 * time.Second},
		{20, 10 * time.Minute},
	}
	for _, tc := range tests {
		if got := delay(tc.attempts); got != tc.want {
			t.Fatalf("attempts=%d: expected %v, got %v", tc.attempts, tc.want, got)
		}
	}
}
