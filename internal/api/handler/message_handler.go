package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/mailqueue/internal/api/middleware"
	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/queue"
)

// MessageHandler handles single-message endpoints.
type MessageHandler struct {
	q      *queue.Manager
	logger *zap.Logger
}

func NewMessageHandler(q *queue.Manager, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{q: q, logger: logger}
}

// Create handles POST /api/v1/messages
//
// @Summary     Enqueue a pre-rendered message
// @Tags        messages
// @Accept      json
// @Produce     json
// @Param       body  body      domain.EnqueueRequest  true  "Message payload"
// @Success     201   {object}  map[string]string
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/messages [post]
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	id, err := h.q.Enqueue(r.Context(), req.Recipient, req.Subject, req.Body, req.Category, req.EnqueueOptions)
	if err != nil {
		h.logger.Warn("enqueue message failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetByID handles GET /api/v1/messages/{id}
//
// @Summary  Get a message by ID
// @Tags     messages
// @Produce  json
// @Param    id   path      string  true  "Message UUID"
// @Success  200  {object}  domain.QueuedMessage
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/messages/{id} [get]
func (h *MessageHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	msg, err := h.q.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// List handles GET /api/v1/messages
//
// @Summary  List messages newest first with filtering and pagination
// @Tags     messages
// @Produce  json
// @Param    status    query     string  false  "Filter by status"
// @Param    category  query     string  false  "Filter by category"
// @Param    priority  query     int     false  "Filter by priority (1-10)"
// @Param    page      query     int     false  "Page number (default 1)"
// @Param    limit     query     int     false  "Items per page (default 20, max 100)"
// @Success  200       {object}  map[string]any
// @Failure  422       {object}  map[string]string
// @Router   /api/v1/messages [get]
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		mapError(w, err)
		return
	}
	messages, total, err := h.q.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  messages,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// MarkSent handles POST /api/v1/messages/{id}/sent
//
// @Summary  Close a pending or in-flight message delivered out of band
// @Tags     messages
// @Param    id   path  string  true  "Message UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/messages/{id}/sent [post]
func (h *MessageHandler) MarkSent(w http.ResponseWriter, r *http.Request) {
	if err := h.q.MarkSent(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markFailedRequest struct {
	Error string `json:"error"`
}

// MarkFailed handles POST /api/v1/messages/{id}/failed
//
// @Summary  Park a pending or in-flight message in failed
// @Tags     messages
// @Accept   json
// @Param    id    path  string             true   "Message UUID"
// @Param    body  body  markFailedRequest  false  "Failure reason"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/messages/{id}/failed [post]
func (h *MessageHandler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	var req markFailedRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	reason := strings.TrimSpace(req.Error)
	if reason == "" {
		reason = "marked failed by operator"
	}

	if err := h.q.MarkFailed(r.Context(), chi.URLParam(r, "id"), reason); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, ok := queryInt(r, "page", 1); ok && p > 0 {
		filter.Page = p
	}
	if l, ok := queryInt(r, "limit", 20); ok && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		if !st.IsValid() {
			return filter, domain.ErrInvalidRequest
		}
		filter.Status = &st
	}
	if c := q.Get("category"); c != "" {
		filter.Category = &c
	}
	if raw := q.Get("priority"); raw != "" {
		p, err := domain.ParsePriority(raw)
		if err != nil {
			return filter, err
		}
		filter.Priority = &p
	}
	return filter, nil
}
