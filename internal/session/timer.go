package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is the wall-clock resolution of the countdown.
const DefaultTickInterval = time.Second

// Runner drives a session's countdown: one Tick per interval while remaining
// seconds are above zero. The instant the countdown reaches zero it fires
// auto-submit exactly once (latched), then stops. No tick is delivered after
// zero, and a manual submission that terminates the session stops the runner
// on its next wakeup.
type Runner struct {
	sess     *Session
	sink     AttemptSink
	interval time.Duration
	// onSubmitted is invoked after a successful auto-submit, outside the
	// session lock. Optional.
	onSubmitted func(attemptID uuid.UUID)
	log         zerolog.Logger
}

// NewRunner creates a runner for one session.
func NewRunner(sess *Session, sink AttemptSink, interval time.Duration, onSubmitted func(uuid.UUID), log zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{
		sess:        sess,
		sink:        sink,
		interval:    interval,
		onSubmitted: onSubmitted,
		log:         log.With().Str("component", "session_runner").Str("session_id", sess.ID().String()).Logger(),
	}
}

// Run blocks until the countdown completes, the session terminates, or ctx is
// cancelled. Call in a goroutine.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	fired := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch r.sess.Phase() {
			case PhaseTerminated:
				return
			case PhaseSubmitting:
				// A manual submit is in flight; let it finish.
				continue
			case PhaseUninitialized:
				continue
			}

			if remaining := r.sess.Tick(ctx); remaining > 0 {
				continue
			}

			// Countdown hit zero: auto-submit once, then stop ticking.
			if fired {
				return
			}
			fired = true

			if r.sess.QuestionCount() == 0 || r.sess.Submitting() {
				return
			}

			attemptID, err := r.sess.Submit(ctx, r.sink)
			if err != nil {
				// ErrSubmitInFlight means a manual submit won the race;
				// either way the countdown is over.
				r.log.Warn().Err(err).Msg("Auto-submit did not complete")
				return
			}

			r.log.Info().Str("attempt_id", attemptID.String()).Msg("Auto-submitted on timeout")
			if r.onSubmitted != nil {
				r.onSubmitted(attemptID)
			}
			return
		}
	}
}
