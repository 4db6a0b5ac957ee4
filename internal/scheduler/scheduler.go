package scheduler

import (
	"context"
	"log/slog"
	"time"

	"portal_sync/internal/domain"
)

// Drainer is the dispatch entry point the scheduler triggers.
type Drainer interface {
	Drain(ctx context.Context, batchSize int) (*domain.DispatchStats, error)
}

// Scheduler periodically triggers a queue drain. It carries no state of
// its own: overlapping runs are safe because job claiming is atomic, so
// a slow drain racing the next tick just partitions the due jobs.
type Scheduler struct {
	drainer   Drainer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewScheduler(drainer Drainer, interval time.Duration, batchSize int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		drainer:   drainer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "batch_size", s.batchSize)

	s.runDrain(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runDrain(ctx)
		}
	}
}

func (s *Scheduler) runDrain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.drainer.Drain(drainCtx, s.batchSize); err != nil {
		s.logger.Error("drain failed", "error", err)
	}
}
