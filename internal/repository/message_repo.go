package repository

import (
	"context"
	"time"

	"github.com/notifyhub/mailqueue/internal/domain"
)

// MessageRepository defines all persistence operations for queued messages.
// The pgx implementation is in pg_message_repo.go.
// Tests use a hand-written mock (mock_message_repo.go).
//
// Every state transition is a conditional update on the current status, so a
// write that loses a race reports false / ErrInvalidTransition instead of
// clobbering another drain's result. Time is always supplied by the caller.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.QueuedMessage) error
	GetByID(ctx context.Context, id string) (*domain.QueuedMessage, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.QueuedMessage, int, error)

	// FindEligible returns up to limit pending messages due at now, ordered by
	// priority ascending then created_at ascending.
	FindEligible(ctx context.Context, now time.Time, limit int) ([]*domain.QueuedMessage, error)

	// Claim moves a message from pending to in_flight and stamps
	// last_attempt_at. It returns the stored attempt count at claim time, and
	// false if the message was no longer pending.
	Claim(ctx context.Context, id string, now time.Time) (int, bool, error)
	// Unclaim returns an in_flight message to pending without recording an
	// attempt. Used when a drain stops before the transport ran.
	Unclaim(ctx context.Context, id string) error

	// MarkSent moves a pending or in_flight message to sent.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	// MarkFailed records one failed attempt and parks the message in failed.
	MarkFailed(ctx context.Context, id string, errMsg string, at time.Time) error
	// Release records one failed attempt and returns an in_flight message to
	// pending. A non-nil scheduledFor defers its next eligibility.
	Release(ctx context.Context, id string, errMsg string, at time.Time, scheduledFor *time.Time) error

	ResetFailed(ctx context.Context, threshold int) (int, error)
	RequeueStale(ctx context.Context, staleBefore time.Time) (int, error)
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error)
	CountByStatus(ctx context.Context) (domain.Stats, error)
}
