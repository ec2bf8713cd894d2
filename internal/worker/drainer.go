package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/domain"
)

// BatchProcessor is the drain side of the queue manager.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, limit int) (domain.BatchResult, error)
}

// Drainer is the external clock that drives ProcessBatch at a fixed cadence.
// The queue never schedules itself.
type Drainer struct {
	q         BatchProcessor
	batchSize int
	interval  time.Duration
	logger    *zap.Logger

	// Optional; receives the wall time of every completed drain.
	onBatch func(time.Duration)
}

func NewDrainer(
	q BatchProcessor,
	batchSize int,
	interval time.Duration,
	logger *zap.Logger,
	onBatch func(time.Duration),
) *Drainer {
	if onBatch == nil {
		onBatch = func(time.Duration) {}
	}
	return &Drainer{q: q, batchSize: batchSize, interval: interval, logger: logger, onBatch: onBatch}
}

// Run ticks every interval and drains one batch per tick.
// Stops cleanly when ctx is cancelled.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("drainer started",
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("drainer stopping")
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Drainer) drain(ctx context.Context) {
	start := time.Now()
	result, err := d.q.ProcessBatch(ctx, d.batchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("drain failed", zap.Error(err))
		}
		return
	}
	d.onBatch(time.Since(start))

	if result.Sent+result.Retried+result.Failed > 0 {
		d.logger.Debug("drain tick",
			zap.Int("sent", result.Sent),
			zap.Int("retried", result.Retried),
			zap.Int("failed", result.Failed),
		)
	}
}
