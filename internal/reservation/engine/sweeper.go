package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

// DefaultSweepInterval is how often the background sweep looks for stale
// PENDING reservations. Lazy expiry in Confirm makes the exact cadence
// non-critical; the sweep exists so holds free up without traffic.
const DefaultSweepInterval = 2 * time.Second

// Sweeper periodically expires due reservations. Swept records are handed to
// onExpired outside the shard locks.
type Sweeper struct {
	log       *slog.Logger
	engine    *Engine
	interval  time.Duration
	onExpired func([]domain.Reservation)
}

func NewSweeper(log *slog.Logger, e *Engine, interval time.Duration, onExpired func([]domain.Reservation)) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{log: log, engine: e, interval: interval, onExpired: onExpired}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			expired := s.engine.ExpireDue()
			if len(expired) == 0 {
				continue
			}
			s.log.Info("reservations expired", "count", len(expired))
			if s.onExpired != nil {
				s.onExpired(expired)
			}
		}
	}
}
