package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/mailqueue/internal/domain"
)

const messageColumns = `
	id, recipient_address, recipient_display_name, subject, body, category,
	correlation_user_id, priority, status, attempts, scheduled_for,
	created_at, last_attempt_at, sent_at, last_error`

type pgMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPgMessageRepository returns a MessageRepository backed by PostgreSQL.
func NewPgMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &pgMessageRepository{pool: pool}
}

func (r *pgMessageRepository) Create(ctx context.Context, m *domain.QueuedMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queued_messages
			(id, recipient_address, recipient_display_name, subject, body, category,
			 correlation_user_id, priority, status, attempts, scheduled_for, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.RecipientAddress, m.RecipientDisplayName, m.Subject, m.Body, m.Category,
		m.CorrelationUserID, m.Priority, m.Status, m.Attempts, m.ScheduledFor, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queued message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) GetByID(ctx context.Context, id string) (*domain.QueuedMessage, error) {
	if !isUUID(id) {
		return nil, domain.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT`+messageColumns+` FROM queued_messages WHERE id = $1`, id)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queued message: %w", err)
	}
	return m, nil
}

func (r *pgMessageRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.QueuedMessage, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM queued_messages"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queued messages: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`SELECT%s FROM queued_messages%s
		ORDER BY created_at DESC, seq DESC
		LIMIT $%d OFFSET $%d`, messageColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queued messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list queued messages: %w", err)
	}
	return messages, total, nil
}

func (r *pgMessageRepository) FindEligible(ctx context.Context, now time.Time, limit int) ([]*domain.QueuedMessage, error) {
	// seq breaks created_at ties in insertion order.
	rows, err := r.pool.Query(ctx, `SELECT`+messageColumns+`
		FROM queued_messages
		WHERE status = 'pending'
		  AND (scheduled_for IS NULL OR scheduled_for <= $1)
		ORDER BY priority ASC, created_at ASC, seq ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find eligible messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *pgMessageRepository) Claim(ctx context.Context, id string, now time.Time) (int, bool, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE queued_messages
		SET status = 'in_flight', last_attempt_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING attempts`, id, now).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("claim message: %w", err)
	}
	return attempts, true, nil
}

func (r *pgMessageRepository) Unclaim(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queued_messages
		SET status = 'pending'
		WHERE id = $1 AND status = 'in_flight'`, id)
	return r.checkTransition(ctx, id, tag, err, "unclaim message")
}

func (r *pgMessageRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	if !isUUID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE queued_messages
		SET status = 'sent', sent_at = $2, last_attempt_at = $2
		WHERE id = $1 AND status IN ('pending', 'in_flight')`, id, sentAt)
	return r.checkTransition(ctx, id, tag, err, "mark sent")
}

func (r *pgMessageRepository) MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error {
	if !isUUID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE queued_messages
		SET status = 'failed', attempts = attempts + 1, last_error = $2, last_attempt_at = $3
		WHERE id = $1 AND status IN ('pending', 'in_flight')`, id, errMsg, at)
	return r.checkTransition(ctx, id, tag, err, "mark failed")
}

func (r *pgMessageRepository) Release(ctx context.Context, id, errMsg string, at time.Time, scheduledFor *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queued_messages
		SET status = 'pending', attempts = attempts + 1, last_error = $2, last_attempt_at = $3,
		    scheduled_for = COALESCE($4, scheduled_for)
		WHERE id = $1 AND status = 'in_flight'`, id, errMsg, at, scheduledFor)
	return r.checkTransition(ctx, id, tag, err, "release message")
}

func (r *pgMessageRepository) ResetFailed(ctx context.Context, threshold int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queued_messages
		SET status = 'pending', attempts = 0
		WHERE status = 'failed' AND attempts < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("reset failed messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgMessageRepository) RequeueStale(ctx context.Context, staleBefore time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queued_messages
		SET status = 'pending'
		WHERE status = 'in_flight' AND last_attempt_at < $1`, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("requeue stale messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgMessageRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM queued_messages
		WHERE status = 'sent' AND sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete sent messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgMessageRepository) CountByStatus(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_flight'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*)
		FROM queued_messages`).Scan(&s.Pending, &s.InFlight, &s.Sent, &s.Failed, &s.Total)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count messages by status: %w", err)
	}
	return s, nil
}

// ---- helpers ----

// checkTransition turns a zero-row conditional update into ErrNotFound or
// ErrInvalidTransition depending on whether the row exists.
func (r *pgMessageRepository) checkTransition(ctx context.Context, id string, tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queued_messages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}

// scanMessage reads a single message row from any pgx row type.
func scanMessage(row pgx.Row) (*domain.QueuedMessage, error) {
	var m domain.QueuedMessage
	err := row.Scan(
		&m.ID, &m.RecipientAddress, &m.RecipientDisplayName, &m.Subject, &m.Body, &m.Category,
		&m.CorrelationUserID, &m.Priority, &m.Status, &m.Attempts, &m.ScheduledFor,
		&m.CreatedAt, &m.LastAttemptAt, &m.SentAt, &m.LastError,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]*domain.QueuedMessage, error) {
	var result []*domain.QueuedMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Category != nil {
		add("category = $%d", *f.Category)
	}
	if f.Priority != nil {
		add("priority = $%d", *f.Priority)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// isUUID rejects ids the uuid column could never hold, so a malformed id
// from the admin API reads as not found instead of a cast error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
