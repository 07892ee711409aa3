package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned when a session is neither in memory nor
// recoverable from the snapshot store.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	sess   *Session
	cancel context.CancelFunc
}

// Manager owns all live sessions in this process. It registers a countdown
// runner per session and restores sessions from the snapshot store when a tab
// reconnects after a reload or server restart.
type Manager struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry

	store SnapshotStore
	sink  AttemptSink
	tick  time.Duration
	log   zerolog.Logger
}

// NewManager creates a Manager persisting through store and submitting
// through sink.
func NewManager(store SnapshotStore, sink AttemptSink, log zerolog.Logger) *Manager {
	return &Manager{
		entries: make(map[uuid.UUID]*entry),
		store:   store,
		sink:    sink,
		tick:    DefaultTickInterval,
		log:     log.With().Str("component", "session_manager").Logger(),
	}
}

// SetTickInterval overrides the countdown resolution. Tests use this to run
// the clock fast.
func (m *Manager) SetTickInterval(d time.Duration) {
	m.tick = d
}

// Start creates a fresh session for an exam and begins its countdown.
func (m *Manager) Start(ctx context.Context, examID string, questions []model.Question, durationMinutes int) *Session {
	sess := New(uuid.New(), m.store, m.log)
	sess.Init(ctx, examID, questions, durationMinutes)
	m.register(sess)

	m.log.Info().
		Str("session_id", sess.ID().String()).
		Str("exam_id", examID).
		Int("questions", len(questions)).
		Int("duration_minutes", durationMinutes).
		Msg("Session started")
	return sess
}

// Resolve returns the live session for an ID, restoring it from the snapshot
// store if this process has never seen it (reload after restart). A missing
// or malformed snapshot yields ErrSessionNotFound.
func (m *Manager) Resolve(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if ok {
		return e.sess, nil
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	sess := Restore(snap, m.store, m.log)
	if sess.Phase() != PhaseActive {
		// A snapshot with no questions cannot be resumed.
		_ = m.store.Clear(ctx, id)
		return nil, ErrSessionNotFound
	}

	m.register(sess)
	m.log.Info().
		Str("session_id", id.String()).
		Int("time_left_seconds", sess.TimeLeft()).
		Msg("Session restored from snapshot")
	return sess, nil
}

// Submit runs the submission pipeline for a session and detaches it from the
// manager on success.
func (m *Manager) Submit(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	sess, err := m.Resolve(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}

	attemptID, err := sess.Submit(ctx, m.sink)
	if err != nil {
		return uuid.Nil, err
	}

	m.remove(id)
	return attemptID, nil
}

// Reset clears a session's state and persisted snapshot and detaches it.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) error {
	sess, err := m.Resolve(ctx, id)
	if err != nil {
		return err
	}
	sess.Reset(ctx)
	m.remove(id)
	return nil
}

// Sweep detaches terminated sessions and sessions idle for longer than
// maxIdle, clearing the snapshots of the idle ones. Returns the number of
// sessions removed.
func (m *Manager) Sweep(ctx context.Context, maxIdle time.Duration) int {
	m.mu.Lock()
	var stale []uuid.UUID
	cutoff := time.Now().Add(-maxIdle)
	for id, e := range m.entries {
		if e.sess.Phase() == PhaseTerminated || e.sess.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.mu.Lock()
		e, ok := m.entries[id]
		if ok {
			delete(m.entries, id)
		}
		m.mu.Unlock()
		if !ok {
			continue
		}

		e.cancel()
		// Terminated sessions already cleared their snapshot on submit.
		if e.sess.Phase() != PhaseTerminated {
			if err := m.store.Clear(ctx, id); err != nil {
				m.log.Warn().Err(err).Str("session_id", id.String()).Msg("Stale snapshot clear failed")
			}
		}
	}
	return len(stale)
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Shutdown stops every session runner. Snapshots stay in the store so
// sessions can be restored after a restart.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.cancel()
	}
	m.entries = make(map[uuid.UUID]*entry)
}

func (m *Manager) register(sess *Session) {
	runCtx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(sess, m.sink, m.tick, nil, m.log)
	go runner.Run(runCtx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[sess.ID()]; ok {
		old.cancel()
	}
	m.entries[sess.ID()] = &entry{sess: sess, cancel: cancel}
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.cancel()
		delete(m.entries, id)
	}
}
