package domain

import "time"

// Status tracks the lifecycle of a queued message.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInFlight, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no automatic transition leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Priority bounds. Lower numbers are drained first.
const (
	PriorityHighest = 1
	PriorityLowest  = 10
	PriorityDefault = 5
)

// QueuedMessage is the single persisted entity of the delivery queue.
// Body is rendered before enqueue and never re-rendered here.
type QueuedMessage struct {
	ID                   string     `json:"id"`
	RecipientAddress     string     `json:"recipient_address"`
	RecipientDisplayName string     `json:"recipient_display_name,omitempty"`
	Subject              string     `json:"subject"`
	Body                 string     `json:"body"`
	Category             string     `json:"category"`
	CorrelationUserID    *int64     `json:"correlation_user_id,omitempty"`
	Priority             int        `json:"priority"`
	Status               Status     `json:"status"`
	Attempts             int        `json:"attempts"`
	ScheduledFor         *time.Time `json:"scheduled_for,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	LastAttemptAt        *time.Time `json:"last_attempt_at,omitempty"`
	SentAt               *time.Time `json:"sent_at,omitempty"`
	LastError            *string    `json:"last_error,omitempty"`
}

// IsEligible reports whether a drain at now may pick the message up.
func (m *QueuedMessage) IsEligible(now time.Time) bool {
	if m.Status != StatusPending {
		return false
	}
	return m.ScheduledFor == nil || !now.Before(*m.ScheduledFor)
}

// EnqueueOptions carries the optional fields of an enqueue call.
// A nil Priority means PriorityDefault; a nil ScheduledFor means eligible immediately.
type EnqueueOptions struct {
	RecipientName     string     `json:"recipient_name,omitempty"`
	CorrelationUserID *int64     `json:"correlation_user_id,omitempty"`
	Priority          *int       `json:"priority,omitempty"`
	ScheduledFor      *time.Time `json:"scheduled_for,omitempty"`
}

// EnqueueRequest is the inbound payload for a single message.
type EnqueueRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Category  string `json:"category" validate:"max=64"`
	EnqueueOptions
}

// ClampPriority normalises p into [PriorityHighest, PriorityLowest].
func ClampPriority(p int) int {
	if p < PriorityHighest {
		return PriorityHighest
	}
	if p > PriorityLowest {
		return PriorityLowest
	}
	return p
}

// ResolvePriority applies the default and the clamp to an optional priority.
func ResolvePriority(p *int) int {
	if p == nil {
		return PriorityDefault
	}
	return ClampPriority(*p)
}

// Stats is a point-in-time count of messages by status.
type Stats struct {
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// BatchResult aggregates the outcome of one drain.
type BatchResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Retried int `json:"retried"`
}

// ListFilter holds query parameters for paginated message listing.
type ListFilter struct {
	Status   *Status
	Category *string
	Priority *int
	Page     int
	Limit    int
}
