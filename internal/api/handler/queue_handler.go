package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/queue"
)

// QueueHandler exposes the queue-wide operations: inspection, a manual
// drain, and the failed/retention maintenance calls.
type QueueHandler struct {
	q             *queue.Manager
	batchSize     int
	retentionDays int
	logger        *zap.Logger

	// Optional; receives the wall time of a manual drain.
	onBatch func(time.Duration)
}

func NewQueueHandler(
	q *queue.Manager,
	batchSize, retentionDays int,
	logger *zap.Logger,
	onBatch func(time.Duration),
) *QueueHandler {
	if onBatch == nil {
		onBatch = func(time.Duration) {}
	}
	return &QueueHandler{q: q, batchSize: batchSize, retentionDays: retentionDays, logger: logger, onBatch: onBatch}
}

// Stats handles GET /api/v1/queue/stats
//
// @Summary  Message counts per status
// @Tags     queue
// @Produce  json
// @Success  200  {object}  domain.Stats
// @Router   /api/v1/queue/stats [get]
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.q.GetStats(r.Context())
	if err != nil {
		h.logger.Error("collect queue stats failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Pending handles GET /api/v1/queue/pending
//
// @Summary  Eligible messages in drain order, without claiming them
// @Tags     queue
// @Produce  json
// @Param    limit  query     int  false  "Maximum messages (default batch size)"
// @Success  200    {object}  map[string]any
// @Router   /api/v1/queue/pending [get]
func (h *QueueHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", h.batchSize)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	messages, err := h.q.GetPending(r.Context(), limit)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": messages, "count": len(messages)})
}

// Process handles POST /api/v1/queue/process
//
// @Summary  Drain one batch now
// @Tags     queue
// @Produce  json
// @Param    limit  query     int  false  "Batch size (default configured batch size)"
// @Success  200    {object}  domain.BatchResult
// @Failure  422    {object}  map[string]string
// @Router   /api/v1/queue/process [post]
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", h.batchSize)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	start := time.Now()
	result, err := h.q.ProcessBatch(r.Context(), limit)
	if err != nil {
		mapError(w, err)
		return
	}
	h.onBatch(time.Since(start))
	respondJSON(w, http.StatusOK, result)
}

// RetryFailed handles POST /api/v1/queue/retry-failed
//
// @Summary  Reset failed messages below an attempt threshold to pending
// @Tags     queue
// @Produce  json
// @Param    threshold  query     int  false  "Reset messages with fewer attempts than this (default max attempts + 1)"
// @Success  200        {object}  map[string]int
// @Router   /api/v1/queue/retry-failed [post]
func (h *QueueHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	// Messages that ran the whole ladder hold exactly MaxAttempts attempts,
	// so the default threshold must sit one above it to include them.
	threshold, ok := queryInt(r, "threshold", h.q.MaxAttempts()+1)
	if !ok {
		respondError(w, http.StatusBadRequest, "threshold must be an integer")
		return
	}
	n, err := h.q.RetryFailed(r.Context(), threshold)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"reset": n})
}

// Purge handles POST /api/v1/queue/purge
//
// @Summary  Delete sent messages older than a retention window
// @Tags     queue
// @Produce  json
// @Param    days  query     int  false  "Retention in days (default configured retention)"
// @Success  200   {object}  map[string]int
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/queue/purge [post]
func (h *QueueHandler) Purge(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", h.retentionDays)
	if !ok {
		respondError(w, http.StatusBadRequest, "days must be an integer")
		return
	}
	n, err := h.q.PurgeOlderThan(r.Context(), days)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
