// Package notify turns learning events into rendered, queued messages.
package notify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/render"
	"github.com/notifyhub/mailqueue/internal/repository"
)

// Categories recorded on queued messages.
const (
	CategoryEnrollment = "enrollment_confirmation"
	CategoryProgress   = "progress_reminder"
	CategoryCompletion = "completion_congratulations"
)

// Priorities per category; lower is drained first.
const (
	priorityEnrollment = 3
	priorityProgress   = 5
	priorityCompletion = 2
)

// Milestones are the rounded progress percentages that trigger a reminder.
var Milestones = []int{25, 50, 75}

// Enqueuer is the producer side of the queue manager.
type Enqueuer interface {
	Enqueue(ctx context.Context, recipient, subject, body, category string, opts domain.EnqueueOptions) (string, error)
}

// Renderer renders a template id with variables into an HTML body.
type Renderer interface {
	Render(templateID string, vars map[string]string) (string, error)
}

// Learner identifies the recipient of a notification.
type Learner struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
}

func (l Learner) greetingName() string {
	if l.FirstName != "" {
		return l.FirstName
	}
	return l.DisplayName
}

type Tutorial struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Notifier renders and enqueues the enrollment, progress and completion
// messages. It never delivers anything itself.
type Notifier struct {
	queue      Enqueuer
	renderer   Renderer
	milestones repository.MilestoneRepository
	siteURL    string
	logger     *zap.Logger
	now        func() time.Time
}

func NewNotifier(
	q Enqueuer,
	r Renderer,
	milestones repository.MilestoneRepository,
	siteURL string,
	logger *zap.Logger,
) *Notifier {
	return &Notifier{
		queue:      q,
		renderer:   r,
		milestones: milestones,
		siteURL:    strings.TrimRight(siteURL, "/"),
		logger:     logger,
		now:        time.Now,
	}
}

// UserEnrolled queues the enrollment confirmation.
func (n *Notifier) UserEnrolled(ctx context.Context, l Learner, t Tutorial) (string, error) {
	vars := map[string]string{
		"user_name":            l.DisplayName,
		"user_email":           l.Email,
		"user_first_name":      l.greetingName(),
		"tutorial_title":       t.Title,
		"tutorial_url":         t.URL,
		"tutorial_description": truncateWords(t.Description, 30),
		"enrolled_date":        n.now().Format("January 2, 2006"),
	}
	return n.send(ctx, l, render.TemplateEnrollmentConfirmation, CategoryEnrollment,
		fmt.Sprintf("Welcome to %s", t.Title), priorityEnrollment, vars)
}

// ProgressUpdated queues a reminder when percent rounds to a milestone that
// has not been notified yet for this learner and tutorial. It returns an
// empty id when nothing was queued.
func (n *Notifier) ProgressUpdated(ctx context.Context, l Learner, t Tutorial, percent float64) (string, error) {
	milestone := int(math.Round(percent))
	if !isMilestone(milestone) {
		return "", nil
	}

	fresh, err := n.milestones.Record(ctx, l.UserID, t.ID, milestone, n.now().UTC())
	if err != nil {
		return "", fmt.Errorf("record milestone: %w", err)
	}
	if !fresh {
		return "", nil
	}

	vars := map[string]string{
		"user_first_name":  l.greetingName(),
		"tutorial_title":   t.Title,
		"tutorial_url":     t.URL,
		"progress_percent": strconv.Itoa(milestone),
	}
	return n.send(ctx, l, render.TemplateProgressReminder, CategoryProgress,
		fmt.Sprintf("You're %d%% through %s!", milestone, t.Title), priorityProgress, vars)
}

// TutorialCompleted queues the completion message with a certificate link.
func (n *Notifier) TutorialCompleted(ctx context.Context, l Learner, t Tutorial, enrollmentID int64) (string, error) {
	vars := map[string]string{
		"user_first_name": l.greetingName(),
		"tutorial_title":  t.Title,
		"completion_date": n.now().Format("January 2, 2006"),
		"certificate_url": fmt.Sprintf("%s/certificates/%d", n.siteURL, enrollmentID),
	}
	return n.send(ctx, l, render.TemplateCompletionCongratulations, CategoryCompletion,
		fmt.Sprintf("Congratulations on completing %s!", t.Title), priorityCompletion, vars)
}

func (n *Notifier) send(
	ctx context.Context,
	l Learner,
	templateID, category, subject string,
	priority int,
	vars map[string]string,
) (string, error) {
	log := n.logger.With(
		zap.Int64("user_id", l.UserID),
		zap.String("template", templateID),
	)

	body, err := n.renderer.Render(templateID, vars)
	if err != nil {
		log.Error("render notification", zap.Error(err))
		return "", fmt.Errorf("render %s: %w", templateID, err)
	}

	userID := l.UserID
	id, err := n.queue.Enqueue(ctx, l.Email, subject, body, category, domain.EnqueueOptions{
		RecipientName:     l.DisplayName,
		CorrelationUserID: &userID,
		Priority:          &priority,
	})
	if err != nil {
		log.Warn("enqueue notification", zap.Error(err))
		return "", err
	}
	return id, nil
}

func isMilestone(p int) bool {
	for _, m := range Milestones {
		if p == m {
			return true
		}
	}
	return false
}

// truncateWords keeps at most n words, appending an ellipsis when it cuts.
func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}
