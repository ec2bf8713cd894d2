package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/repository"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func TestMockRepository_FindEligibleOrder(t *testing.T) {
	repo := repository.NewMockMessageRepository()
	future := t0.Add(time.Hour)

	// Same priority and created_at: insertion order breaks the tie.
	repo.Put(&domain.QueuedMessage{ID: "b", Priority: 5, Status: domain.StatusPending, CreatedAt: t0})
	repo.Put(&domain.QueuedMessage{ID: "c", Priority: 5, Status: domain.StatusPending, CreatedAt: t0})
	repo.Put(&domain.QueuedMessage{ID: "a", Priority: 5, Status: domain.StatusPending, CreatedAt: t0.Add(-time.Minute)})
	repo.Put(&domain.QueuedMessage{ID: "urgent", Priority: 1, Status: domain.StatusPending, CreatedAt: t0.Add(time.Minute)})
	repo.Put(&domain.QueuedMessage{ID: "later", Priority: 1, Status: domain.StatusPending, CreatedAt: t0, ScheduledFor: &future})
	repo.Put(&domain.QueuedMessage{ID: "done", Priority: 1, Status: domain.StatusSent, CreatedAt: t0})

	got, err := repo.FindEligible(context.Background(), t0, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"urgent", "a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d eligible, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestMockRepository_ClaimOnce(t *testing.T) {
	repo := repository.NewMockMessageRepository()
	repo.Put(&domain.QueuedMessage{ID: "m", Priority: 5, Status: domain.StatusPending, CreatedAt: t0})
	ctx := context.Background()

	_, first, _ := repo.Claim(ctx, "m", t0)
	_, second, _ := repo.Claim(ctx, "m", t0)
	if !first || second {
		t.Fatalf("expected exactly one successful claim, got %v then %v", first, second)
	}

	if err := repo.Release(ctx, "m", "timeout", t0, nil); err != nil {
		t.Fatal(err)
	}
	msg, _ := repo.GetByID(ctx, "m")
	if msg.Status != domain.StatusPending || msg.Attempts != 1 {
		t.Fatalf("unexpected released message %+v", msg)
	}
	if err := repo.Release(ctx, "m", "again", t0, nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("release of a pending message must fail, got %v", err)
	}
}

func TestMockRepository_ReturnsCopies(t *testing.T) {
	repo := repository.NewMockMessageRepository()
	repo.Put(&domain.QueuedMessage{ID: "m", Subject: "original", Status: domain.StatusPending, CreatedAt: t0})

	msg, _ := repo.GetByID(context.Background(), "m")
	msg.Subject = "mutated"

	again, _ := repo.GetByID(context.Background(), "m")
	if again.Subject != "original" {
		t.Fatal("callers must not be able to mutate stored rows")
	}
}

func TestMockRepository_ClaimReturnsStoredAttempts(t *testing.T) {
	repo := repository.NewMockMessageRepository()
	repo.Put(&domain.QueuedMessage{ID: "m", Priority: 5, Status: domain.StatusPending, Attempts: 2, CreatedAt: t0})

	attempts, ok, err := repo.Claim(context.Background(), "m", t0)
	if err != nil || !ok {
		t.Fatalf("expected claim, got ok=%v err=%v", ok, err)
	}
	if attempts != 2 {
		t.Fatalf("expected stored attempts 2, got %d", attempts)
	}
}

func TestMockRepository_Unclaim(t *testing.T) {
	repo := repository.NewMockMessageRepository()
	repo.Put(&domain.QueuedMessage{ID: "m", Priority: 5, Status: domain.StatusPending, Attempts: 1, CreatedAt: t0})
	ctx := context.Background()

	if err := repo.Unclaim(ctx, "m"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("unclaim of a pending message must fail, got %v", err)
	}
	if _, _, err := repo.Claim(ctx, "m", t0); err != nil {
		t.Fatal(err)
	}
	if err := repo.Unclaim(ctx, "m"); err != nil {
		t.Fatal(err)
	}
	msg, _ := repo.GetByID(ctx, "m")
	if msg.Status != domain.StatusPending || msg.Attempts != 1 || msg.LastError != nil {
		t.Fatalf("unclaim must not record an attempt, got %+v", msg)
	}
}
