package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/repository"
	"github.com/notifyhub/mailqueue/internal/transport"
)

// DefaultMaxAttempts is the number of delivery attempts before a message is
// parked in failed.
const DefaultMaxAttempts = 3

// Options tunes a Manager. The zero value gives the default behaviour:
// three attempts, immediate re-eligibility after a failure, wall clock time.
type Options struct {
	MaxAttempts int
	// RetryDelay, when set, defers a retryable message via scheduled_for.
	RetryDelay RetryDelay
	Now        func() time.Time
}

// Manager owns the queued message set: enqueue, batch drain, the retry
// ladder, administrative transitions and statistics. It keeps no in-memory
// queue state; every operation re-reads the repository, so any number of
// producers and overlapping drains may share one instance.
type Manager struct {
	repo        repository.MessageRepository
	transport   transport.Transport
	logger      *zap.Logger
	maxAttempts int
	retryDelay  RetryDelay
	now         func() time.Time

	hooksMu sync.RWMutex
	hooks   observers
}

func NewManager(
	repo repository.MessageRepository,
	t transport.Transport,
	logger *zap.Logger,
	opts Options,
) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		repo:        repo,
		transport:   t,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		now:         func() time.Time { return opts.Now().UTC() },
	}
}

// MaxAttempts reports the configured attempt ceiling.
func (m *Manager) MaxAttempts() int { return m.maxAttempts }

// Enqueue validates and persists a new pending message and returns its id.
// Subject and body must already be rendered. Priority is clamped into
// [1,10] rather than rejected.
func (m *Manager) Enqueue(
	ctx context.Context,
	recipient, subject, body, category string,
	opts domain.EnqueueOptions,
) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if err := domain.ValidateRecipient(recipient); err != nil {
		return "", err
	}
	if err := domain.ValidateCategory(category); err != nil {
		return "", err
	}

	msg := &domain.QueuedMessage{
		ID:                   uuid.New().String(),
		RecipientAddress:     recipient,
		RecipientDisplayName: strings.TrimSpace(opts.RecipientName),
		Subject:              subject,
		Body:                 body,
		Category:             category,
		CorrelationUserID:    opts.CorrelationUserID,
		Priority:             domain.ResolvePriority(opts.Priority),
		Status:               domain.StatusPending,
		CreatedAt:            m.now(),
	}
	if opts.ScheduledFor != nil {
		at := opts.ScheduledFor.UTC()
		msg.ScheduledFor = &at
	}

	if err := m.repo.Create(ctx, msg); err != nil {
		return "", fmt.Errorf("persist message: %w", err)
	}

	m.logger.Debug("message enqueued",
		zap.String("message_id", msg.ID),
		zap.String("category", category),
		zap.Int("priority", msg.Priority),
	)
	m.fireEnqueued(msg.ID)
	return msg.ID, nil
}

// ProcessBatch drains up to limit eligible messages in (priority, created_at)
// order. Each message is claimed with a conditional pending -> in_flight
// update before delivery, so overlapping drains never deliver the same
// message concurrently. Per-message failures are counted and logged, never
// returned; only a failed selection query is reported as an error.
func (m *Manager) ProcessBatch(ctx context.Context, limit int) (domain.BatchResult, error) {
	var result domain.BatchResult
	if limit <= 0 {
		return result, domain.ErrInvalidBatchSize
	}

	batch, err := m.repo.FindEligible(ctx, m.now(), limit)
	if err != nil {
		m.logger.Error("select eligible messages", zap.Error(err))
		return result, fmt.Errorf("select eligible messages: %w", err)
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			// Unclaimed messages stay pending for the next drain.
			break
		}
		m.deliver(ctx, msg, &result)
	}

	m.logger.Info("batch processed",
		zap.Int("selected", len(batch)),
		zap.Int("sent", result.Sent),
		zap.Int("retried", result.Retried),
		zap.Int("failed", result.Failed),
	)
	m.fireBatchProcessed(result)
	return result, nil
}

func (m *Manager) deliver(ctx context.Context, msg *domain.QueuedMessage, result *domain.BatchResult) {
	log := m.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("category", msg.Category),
	)

	// The stored count, not the selection snapshot: another drain may have
	// recorded an attempt between FindEligible and this claim.
	stored, claimed, err := m.repo.Claim(ctx, msg.ID, m.now())
	if err != nil {
		log.Error("claim message", zap.Error(err))
		return
	}
	if !claimed {
		log.Debug("message already claimed by another drain")
		return
	}

	sendErr := m.transport.Send(ctx, transport.Message{
		ID:          msg.ID,
		To:          msg.RecipientAddress,
		DisplayName: msg.RecipientDisplayName,
		Subject:     msg.Subject,
		Body:        msg.Body,
		Category:    msg.Category,
	})

	// The outcome must be recorded even if the drain is being cancelled.
	writeCtx := context.WithoutCancel(ctx)

	if sendErr == nil {
		if err := m.MarkSent(writeCtx, msg.ID); err != nil {
			log.Error("record sent transition", zap.Error(err))
			return
		}
		result.Sent++
		return
	}

	if ctx.Err() != nil || errors.Is(sendErr, transport.ErrNotAttempted) {
		// The drain stopped before or during the send, so the failure says
		// nothing about the recipient. Hand the message back without counting
		// an attempt.
		if err := m.repo.Unclaim(writeCtx, msg.ID); err != nil {
			log.Error("return cancelled message to pending", zap.Error(err))
			return
		}
		log.Info("delivery abandoned, message returned to pending", zap.NamedError("send_error", sendErr))
		return
	}

	attempts := stored + 1
	log.Warn("transport send failed",
		zap.Error(sendErr),
		zap.Int("attempt", attempts),
		zap.Int("max_attempts", m.maxAttempts),
	)

	if attempts >= m.maxAttempts {
		if err := m.MarkFailed(writeCtx, msg.ID, sendErr.Error()); err != nil {
			log.Error("record failed transition", zap.Error(err))
			return
		}
		result.Failed++
		return
	}

	var scheduledFor *time.Time
	if m.retryDelay != nil {
		at := m.now().Add(m.retryDelay(attempts))
		scheduledFor = &at
	}
	if err := m.repo.Release(writeCtx, msg.ID, sendErr.Error(), m.now(), scheduledFor); err != nil {
		log.Error("record retry transition", zap.Error(err))
		return
	}
	result.Retried++
}

// MarkSent moves a pending or in-flight message to sent.
// Callers that deliver out-of-band use it to close the message.
func (m *Manager) MarkSent(ctx context.Context, id string) error {
	if err := m.repo.MarkSent(ctx, id, m.now()); err != nil {
		return err
	}
	m.fireSent(id)
	return nil
}

// MarkFailed records a failed delivery attempt against a pending or in-flight
// message and parks it in failed with reason as last_error.
func (m *Manager) MarkFailed(ctx context.Context, id, reason string) error {
	if err := m.repo.MarkFailed(ctx, id, reason, m.now()); err != nil {
		return err
	}
	m.fireFailed(id, reason)
	return nil
}

// RetryFailed resets every failed message with attempts below threshold to
// pending with zero attempts and returns how many were reset.
func (m *Manager) RetryFailed(ctx context.Context, threshold int) (int, error) {
	n, err := m.repo.ResetFailed(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("failed messages reset for retry", zap.Int("count", n), zap.Int("threshold", threshold))
	}
	return n, nil
}

// GetPending lists eligible messages in drain order without claiming them.
func (m *Manager) GetPending(ctx context.Context, limit int) ([]*domain.QueuedMessage, error) {
	if limit <= 0 {
		return []*domain.QueuedMessage{}, nil
	}
	return m.repo.FindEligible(ctx, m.now(), limit)
}

func (m *Manager) GetStats(ctx context.Context) (domain.Stats, error) {
	return m.repo.CountByStatus(ctx)
}

func (m *Manager) GetByID(ctx context.Context, id string) (*domain.QueuedMessage, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *Manager) List(ctx context.Context, filter domain.ListFilter) ([]*domain.QueuedMessage, int, error) {
	return m.repo.List(ctx, filter)
}

// PurgeOlderThan deletes sent messages whose sent_at is more than days old.
// Pending, in-flight and failed messages are never purged.
func (m *Manager) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	if days < 1 {
		return 0, domain.ErrInvalidRetention
	}
	cutoff := m.now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := m.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("purged sent messages", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// RequeueStuck returns in-flight messages whose claim is older than olderThan
// to pending. A transport call that never returned leaves its message
// in_flight forever otherwise. Attempts are not incremented because the
// outcome of the lost attempt is unknown; the message may be delivered twice.
func (m *Manager) RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := m.repo.RequeueStale(ctx, m.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Warn("requeued stuck in-flight messages", zap.Int("count", n), zap.Duration("older_than", olderThan))
	}
	return n, nil
}
