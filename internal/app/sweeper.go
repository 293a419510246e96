package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically expires stale pending bookings and completes
// confirmed bookings whose sessions have ended. Each pass is idempotent and
// safe to run concurrently with webhook processing: both sides re-check
// state under the booking row lock.
type Sweeper struct {
	bookings *BookingService
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(bookings *BookingService, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		bookings: bookings,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.bookings.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("expire sweep failed", zap.Error(err))
	}
	completed, err := s.bookings.CompleteElapsed(ctx)
	if err != nil {
		s.logger.Error("complete sweep failed", zap.Error(err))
	}
	if expired > 0 || completed > 0 {
		s.logger.Info("sweep finished", zap.Int("expired", expired), zap.Int("completed", completed))
	}
}
