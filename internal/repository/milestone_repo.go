package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MilestoneRepository remembers which progress milestones have already
// produced a notification for a given user and tutorial.
type MilestoneRepository interface {
	// Record stores the milestone and reports whether it was new.
	Record(ctx context.Context, userID, tutorialID int64, milestone int, at time.Time) (bool, error)
}

type pgMilestoneRepository struct {
	pool *pgxpool.Pool
}

// NewPgMilestoneRepository returns a MilestoneRepository backed by PostgreSQL.
func NewPgMilestoneRepository(pool *pgxpool.Pool) MilestoneRepository {
	return &pgMilestoneRepository{pool: pool}
}

func (r *pgMilestoneRepository) Record(ctx context.Context, userID, tutorialID int64, milestone int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO progress_milestones (user_id, tutorial_id, milestone, notified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, tutorial_id, milestone) DO NOTHING`,
		userID, tutorialID, milestone, at)
	if err != nil {
		return false, fmt.Errorf("record milestone: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

type milestoneKey struct {
	userID, tutorialID int64
	milestone          int
}

// MockMilestoneRepository is the in-memory MilestoneRepository used in tests.
type MockMilestoneRepository struct {
	mu   sync.Mutex
	seen map[milestoneKey]time.Time

	RecordErr error
}

func NewMockMilestoneRepository() *MockMilestoneRepository {
	return &MockMilestoneRepository{seen: make(map[milestoneKey]time.Time)}
}

func (m *MockMilestoneRepository) Record(_ context.Context, userID, tutorialID int64, milestone int, at time.Time) (bool, error) {
	if m.RecordErr != nil {
		return false, m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := milestoneKey{userID, tutorialID, milestone}
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = at
	return true, nil
}
