package pipeline

import (
	"context"
	"time"

	"positioning-analyzer/internal/common/logger"
)

// StaleSessionStore is the slice of the store the sweeper needs.
type StaleSessionStore interface {
	FailStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper reconciles orphaned runs. A crash between claiming a session and
// writing its terminal status leaves it stuck in processing; the sweeper
// force-fails anything processing for longer than the staleness threshold.
type Sweeper struct {
	store      StaleSessionStore
	interval   time.Duration
	staleAfter time.Duration
	logger     logger.Logger
}

func NewSweeper(store StaleSessionStore, interval, staleAfter time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     log.With(map[string]interface{}{"component": "sweeper"}),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
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
	cutoff := time.Now().UTC().Add(-s.staleAfter)
	n, err := s.store.FailStaleSessions(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if n > 0 {
		s.logger.Warn("force-failed stale sessions", map[string]interface{}{"count": n})
	}
}
