package queue

import (
	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/domain"
)

// Observer callbacks run synchronously after the state transition they report
// has been persisted. None is required.
type (
	EnqueuedFunc       func(id string)
	SentFunc           func(id string)
	FailedFunc         func(id string, reason string)
	BatchProcessedFunc func(result domain.BatchResult)
)

type observers struct {
	enqueued       []EnqueuedFunc
	sent           []SentFunc
	failed         []FailedFunc
	batchProcessed []BatchProcessedFunc
}

func (m *Manager) OnEnqueued(fn EnqueuedFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks.enqueued = append(m.hooks.enqueued, fn)
}

func (m *Manager) OnSent(fn SentFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks.sent = append(m.hooks.sent, fn)
}

// OnFailed fires when a message reaches the terminal failed status.
func (m *Manager) OnFailed(fn FailedFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks.failed = append(m.hooks.failed, fn)
}

func (m *Manager) OnBatchProcessed(fn BatchProcessedFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks.batchProcessed = append(m.hooks.batchProcessed, fn)
}

func (m *Manager) fireEnqueued(id string) {
	m.hooksMu.RLock()
	fns := m.hooks.enqueued
	m.hooksMu.RUnlock()
	for _, fn := range fns {
		m.safely("enqueued", func() { fn(id) })
	}
}

func (m *Manager) fireSent(id string) {
	m.hooksMu.RLock()
	fns := m.hooks.sent
	m.hooksMu.RUnlock()
	for _, fn := range fns {
		m.safely("sent", func() { fn(id) })
	}
}

func (m *Manager) fireFailed(id, reason string) {
	m.hooksMu.RLock()
	fns := m.hooks.failed
	m.hooksMu.RUnlock()
	for _, fn := range fns {
		m.safely("failed", func() { fn(id, reason) })
	}
}

func (m *Manager) fireBatchProcessed(result domain.BatchResult) {
	m.hooksMu.RLock()
	fns := m.hooks.batchProcessed
	m.hooksMu.RUnlock()
	for _, fn := range fns {
		m.safely("batch_processed", func() { fn(result) })
	}
}

// safely runs an observer and logs instead of propagating a panic.
func (m *Manager) safely(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("observer panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	fn()
}
