package core

// scheduler.go runs background maintenance for the Service.
//
// The janitor evicts retained outcomes once they outlive RetainFor. It runs
// immediately on start and then on every tick until the context is
// cancelled. A pass never fails; it only logs what it removed.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is used when StartJanitor gets a non-positive interval.
const DefaultJanitorInterval = time.Minute

// StartJanitor blocks, evicting expired outcomes every interval until ctx
// is cancelled. Run it in its own goroutine.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	slog.Info("outcome janitor started",
		"interval", interval.String(),
		"retain_for", s.cfg.RetainFor.String(),
		"max_retained", s.cfg.MaxRetained,
	)

	s.runJanitor()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("outcome janitor stopped")
			return
		case <-ticker.C:
			s.runJanitor()
		}
	}
}

// runJanitor performs one eviction pass.
func (s *Service) runJanitor() {
	start := time.Now()
	evicted := s.evictExpired()
	if evicted == 0 {
		slog.Debug("janitor pass found nothing to evict")
		return
	}
	slog.Info("evicted expired outcomes",
		"evicted", evicted,
		"retained", s.RetainedCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
