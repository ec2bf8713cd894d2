package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/domain"
)

// Maintainer is the housekeeping side of the queue manager.
type Maintainer interface {
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error)
	PurgeOlderThan(ctx context.Context, days int) (int, error)
	GetStats(ctx context.Context) (domain.Stats, error)
}

// Sweeper periodically returns abandoned in-flight messages to pending,
// purges sent messages past retention and publishes a stats snapshot.
//
// Requeued messages keep their attempt count, so a message whose outcome was
// lost after a successful send may be delivered a second time.
type Sweeper struct {
	q             Maintainer
	stuckAfter    time.Duration
	retentionDays int
	interval      time.Duration
	logger        *zap.Logger

	onStats func(domain.Stats)
}

func NewSweeper(
	q Maintainer,
	stuckAfter time.Duration,
	retentionDays int,
	interval time.Duration,
	logger *zap.Logger,
	onStats func(domain.Stats),
) *Sweeper {
	if onStats == nil {
		onStats = func(domain.Stats) {}
	}
	return &Sweeper{
		q: q, stuckAfter: stuckAfter, retentionDays: retentionDays,
		interval: interval, logger: logger, onStats: onStats,
	}
}

// Run sweeps once immediately, then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("stuck_after", s.stuckAfter),
		zap.Int("retention_days", s.retentionDays),
	)
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	// Counts are logged by the manager.
	if _, err := s.q.RequeueStuck(ctx, s.stuckAfter); err != nil {
		s.logger.Error("requeue stuck messages", zap.Error(err))
	}
	if _, err := s.q.PurgeOlderThan(ctx, s.retentionDays); err != nil {
		s.logger.Error("purge sent messages", zap.Error(err))
	}

	stats, err := s.q.GetStats(ctx)
	if err != nil {
		s.logger.Error("collect queue stats", zap.Error(err))
		return
	}
	s.onStats(stats)
}
