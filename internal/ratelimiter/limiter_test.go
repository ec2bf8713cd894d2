package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/notifyhub/mailqueue/internal/ratelimiter"
)

func TestCategoryLimiters_BurstThenBlock(t *testing.T) {
	cl := ratelimiter.New(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cl.Wait(ctx, "enrollment_confirmation"); err != nil {
			t.Fatalf("token %d: unexpected error: %v", i, err)
		}
	}

	// The bucket for this category is empty; a short deadline must expire.
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := cl.Wait(short, "enrollment_confirmation"); err == nil {
		t.Fatal("expected wait to fail once the burst is spent")
	}

	// Other categories have their own bucket.
	if err := cl.Wait(ctx, "progress_reminder"); err != nil {
		t.Fatalf("independent category: unexpected error: %v", err)
	}
}

func TestCategoryLimiters_Disabled(t *testing.T) {
	cl := ratelimiter.New(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 100; i++ {
		if err := cl.Wait(ctx, "any"); err != nil {
			t.Fatalf("unexpected error with limiting disabled: %v", err)
		}
	}
}
