package ratelimit

import (
	"context"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/logger"
)

// Sweeper periodically removes expired records from a Store. It is owned
// by whoever calls Run and stops when that context is cancelled.
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debug("Quota sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Quota sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns how many records were dropped
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		logger.Error("Quota sweep failed", "error", err)
		return 0
	}
	if removed > 0 {
		logger.Debug("Quota sweep removed expired records", "removed", removed)
	}
	return removed
}
