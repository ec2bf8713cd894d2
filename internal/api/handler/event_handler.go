package handler

import (
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/mailqueue/internal/api/middleware"
	"github.com/notifyhub/mailqueue/internal/notify"
)

// EventHandler accepts learning events from the host application and turns
// them into queued notifications.
type EventHandler struct {
	n      *notify.Notifier
	logger *zap.Logger
}

func NewEventHandler(n *notify.Notifier, logger *zap.Logger) *EventHandler {
	return &EventHandler{n: n, logger: logger}
}

type enrollmentEvent struct {
	Learner  notify.Learner  `json:"learner"`
	Tutorial notify.Tutorial `json:"tutorial"`
}

type progressEvent struct {
	Learner  notify.Learner  `json:"learner"`
	Tutorial notify.Tutorial `json:"tutorial"`
	Percent  float64         `json:"percent"`
}

type completionEvent struct {
	Learner      notify.Learner  `json:"learner"`
	Tutorial     notify.Tutorial `json:"tutorial"`
	EnrollmentID int64           `json:"enrollment_id"`
}

// Enrolled handles POST /api/v1/events/enrollments
//
// @Summary  Queue an enrollment confirmation
// @Tags     events
// @Accept   json
// @Produce  json
// @Success  202  {object}  map[string]string
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/events/enrollments [post]
func (h *EventHandler) Enrolled(w http.ResponseWriter, r *http.Request) {
	var ev enrollmentEvent
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := h.n.UserEnrolled(r.Context(), ev.Learner, ev.Tutorial)
	h.respond(w, r, id, err)
}

// Progress handles POST /api/v1/events/progress
//
// @Summary  Queue a progress reminder when a milestone is first reached
// @Tags     events
// @Accept   json
// @Produce  json
// @Success  202  {object}  map[string]string
// @Success  204  "Not a new milestone"
// @Router   /api/v1/events/progress [post]
func (h *EventHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var ev progressEvent
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := h.n.ProgressUpdated(r.Context(), ev.Learner, ev.Tutorial, ev.Percent)
	h.respond(w, r, id, err)
}

// Completed handles POST /api/v1/events/completions
//
// @Summary  Queue a completion message
// @Tags     events
// @Accept   json
// @Produce  json
// @Success  202  {object}  map[string]string
// @Router   /api/v1/events/completions [post]
func (h *EventHandler) Completed(w http.ResponseWriter, r *http.Request) {
	var ev completionEvent
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := h.n.TutorialCompleted(r.Context(), ev.Learner, ev.Tutorial, ev.EnrollmentID)
	h.respond(w, r, id, err)
}

func (h *EventHandler) respond(w http.ResponseWriter, r *http.Request, id string, err error) {
	if err != nil {
		h.logger.Warn("event notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	if id == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}
