package donation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer marks stale listings as expired.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper expires stale listings on a fixed interval in the background.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
}

// NewSweeper creates a background expiry sweeper. A non-positive interval
// defaults to one hour.
func NewSweeper(e Expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{expirer: e, interval: interval}
}

// Run sweeps once immediately and then on every tick. It blocks until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "donation.sweeper"))
	log.Info("starting expiry sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *zap.Logger) {
	n, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	log.Debug("expiry sweep complete", zap.Int("expired", n))
}
