package hold

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically releases expired holds in-process.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper builds an expiry sweeper over the hold service.
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := s.service.SweepExpired(ctx)
			if err != nil {
				s.logger.Error("hold sweep failed", "error", err)
				continue
			}
			if released > 0 {
				s.logger.Info("released expired holds", "count", released)
			}
		}
	}
}
