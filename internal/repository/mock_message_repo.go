package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/mailqueue/internal/domain"
)

// MockMessageRepository is a hand-written, in-memory implementation of
// MessageRepository used in unit tests. Conditional transitions run under a
// single mutex so it honours the same claim semantics as the SQL version.
type MockMessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*mockRow
	seq      int64

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr       error
	FindEligibleErr error
	ClaimErr        error
	MarkSentErr     error
	ReleaseErr      error
}

type mockRow struct {
	msg domain.QueuedMessage
	seq int64
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{messages: make(map[string]*mockRow)}
}

func (m *MockMessageRepository) Create(_ context.Context, msg *domain.QueuedMessage) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.messages[msg.ID] = &mockRow{msg: cloneMessage(msg), seq: m.seq}
	return nil
}

func (m *MockMessageRepository) GetByID(_ context.Context, id string) (*domain.QueuedMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := cloneMessage(&row.msg)
	return &clone, nil
}

func (m *MockMessageRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.QueuedMessage, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []*mockRow
	for _, row := range m.messages {
		if f.Status != nil && row.msg.Status != *f.Status {
			continue
		}
		if f.Category != nil && row.msg.Category != *f.Category {
			continue
		}
		if f.Priority != nil && row.msg.Priority != *f.Priority {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	total := len(rows)
	start := (f.Page - 1) * f.Limit
	if start < 0 || start >= total {
		return []*domain.QueuedMessage{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	result := make([]*domain.QueuedMessage, 0, end-start)
	for _, row := range rows[start:end] {
		clone := cloneMessage(&row.msg)
		result = append(result, &clone)
	}
	return result, total, nil
}

func (m *MockMessageRepository) FindEligible(_ context.Context, now time.Time, limit int) ([]*domain.QueuedMessage, error) {
	if m.FindEligibleErr != nil {
		return nil, m.FindEligibleErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []*mockRow
	for _, row := range m.messages {
		if row.msg.IsEligible(now) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.msg.Priority != b.msg.Priority {
			return a.msg.Priority < b.msg.Priority
		}
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	result := make([]*domain.QueuedMessage, 0, len(rows))
	for _, row := range rows {
		clone := cloneMessage(&row.msg)
		result = append(result, &clone)
	}
	return result, nil
}

func (m *MockMessageRepository) Claim(_ context.Context, id string, now time.Time) (int, bool, error) {
	if m.ClaimErr != nil {
		return 0, false, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.messages[id]
	if !ok || row.msg.Status != domain.StatusPending {
		return 0, false, nil
	}
	row.msg.Status = domain.StatusInFlight
	row.msg.LastAttemptAt = &now
	return row.msg.Attempts, true, nil
}

func (m *MockMessageRepository) Unclaim(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.transitionable(id, domain.StatusInFlight)
	if err != nil {
		return err
	}
	row.msg.Status = domain.StatusPending
	return nil
}

func (m *MockMessageRepository) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.transitionable(id, domain.StatusPending, domain.StatusInFlight)
	if err != nil {
		return err
	}
	row.msg.Status = domain.StatusSent
	row.msg.SentAt = &sentAt
	row.msg.LastAttemptAt = &sentAt
	return nil
}

func (m *MockMessageRepository) MarkFailed(_ context.Context, id, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.transitionable(id, domain.StatusPending, domain.StatusInFlight)
	if err != nil {
		return err
	}
	row.msg.Status = domain.StatusFailed
	row.msg.Attempts++
	row.msg.LastError = &errMsg
	row.msg.LastAttemptAt = &at
	return nil
}

func (m *MockMessageRepository) Release(_ context.Context, id, errMsg string, at time.Time, scheduledFor *time.Time) error {
	if m.ReleaseErr != nil {
		return m.ReleaseErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.transitionable(id, domain.StatusInFlight)
	if err != nil {
		return err
	}
	row.msg.Status = domain.StatusPending
	row.msg.Attempts++
	row.msg.LastError = &errMsg
	row.msg.LastAttemptAt = &at
	if scheduledFor != nil {
		s := *scheduledFor
		row.msg.ScheduledFor = &s
	}
	return nil
}

func (m *MockMessageRepository) ResetFailed(_ context.Context, threshold int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.messages {
		if row.msg.Status == domain.StatusFailed && row.msg.Attempts < threshold {
			row.msg.Status = domain.StatusPending
			row.msg.Attempts = 0
			n++
		}
	}
	return n, nil
}

func (m *MockMessageRepository) RequeueStale(_ context.Context, staleBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.messages {
		if row.msg.Status == domain.StatusInFlight &&
			row.msg.LastAttemptAt != nil && row.msg.LastAttemptAt.Before(staleBefore) {
			row.msg.Status = domain.StatusPending
			n++
		}
	}
	return n, nil
}

func (m *MockMessageRepository) DeleteSentBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, row := range m.messages {
		if row.msg.Status == domain.StatusSent && row.msg.SentAt != nil && row.msg.SentAt.Before(cutoff) {
			delete(m.messages, id)
			n++
		}
	}
	return n, nil
}

func (m *MockMessageRepository) CountByStatus(_ context.Context) (domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s domain.Stats
	for _, row := range m.messages {
		switch row.msg.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusInFlight:
			s.InFlight++
		case domain.StatusSent:
			s.Sent++
		case domain.StatusFailed:
			s.Failed++
		}
		s.Total++
	}
	return s, nil
}

// Put overwrites a stored message; tests use it to arrange ages and states.
func (m *MockMessageRepository) Put(msg *domain.QueuedMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.messages[msg.ID]; ok {
		row.msg = cloneMessage(msg)
		return
	}
	m.seq++
	m.messages[msg.ID] = &mockRow{msg: cloneMessage(msg), seq: m.seq}
}

// transitionable must be called with mu held.
func (m *MockMessageRepository) transitionable(id string, from ...domain.Status) (*mockRow, error) {
	row, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, s := range from {
		if row.msg.Status == s {
			return row, nil
		}
	}
	return nil, domain.ErrInvalidTransition
}

// cloneMessage copies the message and every pointer field so callers never
// share memory with the store.
func cloneMessage(msg *domain.QueuedMessage) domain.QueuedMessage {
	c := *msg
	if msg.CorrelationUserID != nil {
		v := *msg.CorrelationUserID
		c.CorrelationUserID = &v
	}
	c.ScheduledFor = cloneTime(msg.ScheduledFor)
	c.LastAttemptAt = cloneTime(msg.LastAttemptAt)
	c.SentAt = cloneTime(msg.SentAt)
	if msg.LastError != nil {
		v := *msg.LastError
		c.LastError = &v
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
