package worker

import (
	"context"
	"time"

	"github.com/prepdeck/mockexam-backend/internal/session"
	"github.com/rs/zerolog"
)

// SessionReaper periodically sweeps the session manager: terminated sessions
// and sessions idle past the snapshot TTL are detached so their runner
// goroutines stop. Redis expires the snapshots on its own; the reaper keeps
// the in-process map from growing with abandoned tabs.
type SessionReaper struct {
	manager  *session.Manager
	interval time.Duration
	maxIdle  time.Duration
	log      zerolog.Logger
}

// NewSessionReaper creates a new SessionReaper.
func NewSessionReaper(manager *session.Manager, interval, maxIdle time.Duration, log zerolog.Logger) *SessionReaper {
	return &SessionReaper{
		manager:  manager,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log.With().Str("component", "session_reaper").Logger(),
	}
}

// Start begins the reaper loop. Call in a goroutine.
func (r *SessionReaper) Start(ctx context.Context) {
	r.log.Info().
		Dur("interval", r.interval).
		Dur("max_idle", r.maxIdle).
		Msg("Reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Reaper stopped")
			return
		case <-ticker.C:
			removed := r.manager.Sweep(ctx, r.maxIdle)
			if removed > 0 {
				r.log.Info().
					Int("removed", removed).
					Int("live", r.manager.Count()).
					Msg("Swept stale sessions")
			}
		}
	}
}
