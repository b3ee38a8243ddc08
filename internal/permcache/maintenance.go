package permcache

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = time.Minute

// Sweeper periodically reclaims expired entries from a Store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a Sweeper. A zero interval falls back to
// DefaultSweepInterval.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled. The sweep racing a
// concurrent Set is benign: a fresh write simply survives to the next pass.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.ClearExpired(); removed > 0 {
				s.logger.Debug("cache sweep", slog.Int("removed", removed))
			}
		}
	}
}

// SweepOnce runs a single sweep, for the manual maintenance action.
func (s *Sweeper) SweepOnce() int {
	return s.store.ClearExpired()
}
