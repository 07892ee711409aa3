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

// Phase enumerates the session lifecycle.
type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseActive        Phase = "ACTIVE"
	PhaseSubmitting    Phase = "SUBMITTING"
	PhaseTerminated    Phase = "TERMINATED"
)

// Session lifecycle errors.
var (
	ErrNotActive      = errors.New("session is not active")
	ErrSubmitInFlight = errors.New("submission already in progress")
	ErrInvalidExamID  = errors.New("session exam identifier is not a valid UUID")
)

// Session is the single mutable source of truth for one in-progress exam
// attempt. All mutations are serialized by an internal mutex: one mutation
// completes (including its snapshot save) before the next begins. The
// submitting flag is the sole guard against a second durable write while one
// is outstanding.
type Session struct {
	mu sync.Mutex

	id              uuid.UUID
	examID          string
	questions       []model.Question
	cursor          int
	answers         map[string]model.Option
	flags           map[string]struct{}
	strikethroughs  map[string]map[model.Option]struct{}
	timeLeft        int
	durationMinutes int
	submitting      bool
	phase           Phase
	attemptID       uuid.UUID
	lastActivity    time.Time

	store SnapshotStore
	log   zerolog.Logger
}

// New creates an uninitialized session bound to a snapshot store.
func New(id uuid.UUID, store SnapshotStore, log zerolog.Logger) *Session {
	s := &Session{
		id:    id,
		store: store,
		log:   log.With().Str("component", "session").Str("session_id", id.String()).Logger(),
	}
	s.resetLocked()
	return s
}

// Restore rebuilds a session from a persisted snapshot. A snapshot without
// questions resumes as Uninitialized.
func Restore(snap *Snapshot, store SnapshotStore, log zerolog.Logger) *Session {
	s := New(snap.SessionID, store, log)

	s.examID = snap.ExamID
	s.questions = snap.Questions
	s.cursor = snap.CurrentQuestionIndex
	s.timeLeft = snap.TimeLeftSeconds
	s.durationMinutes = snap.DurationMinutes

	for qid, opt := range snap.Answers {
		s.answers[qid] = opt
	}
	for _, qid := range snap.Flags {
		s.flags[qid] = struct{}{}
	}
	for qid, opts := range snap.Strikethroughs {
		set := make(map[model.Option]struct{}, len(opts))
		for _, o := range opts {
			set[o] = struct{}{}
		}
		s.strikethroughs[qid] = set
	}

	if len(s.questions) > 0 {
		s.phase = PhaseActive
	}
	return s
}

// Init replaces any existing session state unconditionally: cursor back to 0,
// annotations cleared, remaining seconds set from the declared duration.
// Always succeeds and persists the fresh snapshot.
func (s *Session) Init(ctx context.Context, examID string, questions []model.Question, durationMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.examID = examID
	s.questions = questions
	s.timeLeft = durationMinutes * 60
	s.durationMinutes = durationMinutes
	s.phase = PhaseActive
	s.persistLocked(ctx)
}

// SetAnswer inserts or overwrites the selected option for a question. Last
// write wins. The option label is NOT validated against the question's
// declared options here; that check belongs to the transport boundary.
func (s *Session) SetAnswer(ctx context.Context, questionID string, option model.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	s.answers[questionID] = option
	s.persistLocked(ctx)
}

// ToggleFlag adds the question to the flagged set if absent, else removes it.
func (s *Session) ToggleFlag(ctx context.Context, questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	if _, ok := s.flags[questionID]; ok {
		delete(s.flags, questionID)
	} else {
		s.flags[questionID] = struct{}{}
	}
	s.persistLocked(ctx)
}

// ToggleStrikethrough adds the option to the question's struck-out set if
// absent, else removes it. Independent of answer selection.
func (s *Session) ToggleStrikethrough(ctx context.Context, questionID string, option model.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	set, ok := s.strikethroughs[questionID]
	if !ok {
		set = make(map[model.Option]struct{})
		s.strikethroughs[questionID] = set
	}
	if _, struck := set[option]; struck {
		delete(set, option)
	} else {
		set[option] = struct{}{}
	}
	s.persistLocked(ctx)
}

// Navigate moves the cursor only when the target index is in bounds.
// Out-of-range targets are silently ignored, not clamped.
func (s *Session) Navigate(ctx context.Context, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	if index < 0 || index >= len(s.questions) {
		return
	}
	s.cursor = index
	s.persistLocked(ctx)
}

// Tick decrements remaining seconds by one, floored at zero, and returns the
// new value. Ticks only apply to an Active session.
func (s *Session) Tick(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return s.timeLeft
	}
	if s.timeLeft > 0 {
		s.timeLeft--
		s.persistLocked(ctx)
	}
	return s.timeLeft
}

// Reset restores all fields to the empty initial state and clears the
// persisted snapshot.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	if err := s.store.Clear(ctx, s.id); err != nil {
		s.log.Warn().Err(err).Msg("Snapshot clear failed")
	}
}

// Submit runs the submission pipeline: freeze the session, compute the score,
// write exactly one durable Attempt through the sink, then terminate. A
// re-entrant call while a write is outstanding returns ErrSubmitInFlight and
// performs no write. A failed write returns the session to Active so the
// candidate can retry.
func (s *Session) Submit(ctx context.Context, sink AttemptSink) (uuid.UUID, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return uuid.Nil, ErrSubmitInFlight
	}
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return uuid.Nil, ErrNotActive
	}

	// The attempt must reference a real exam. A session carrying a malformed
	// exam identifier is rejected outright rather than attached to a
	// substitute record.
	examID, err := uuid.Parse(s.examID)
	if err != nil {
		s.mu.Unlock()
		return uuid.Nil, ErrInvalidExamID
	}

	s.submitting = true
	s.phase = PhaseSubmitting

	correct := 0
	answers := make(map[string]model.Option, len(s.answers))
	for _, q := range s.questions {
		if opt, ok := s.answers[q.ID.String()]; ok {
			answers[q.ID.String()] = opt
			if opt == q.CorrectOption {
				correct++
			}
		}
	}

	attempt := &model.Attempt{
		ExamID:           examID,
		Score:            correct,
		TimeSpentSeconds: s.durationMinutes*60 - s.timeLeft,
		AnswersData:      answers,
		Status:           model.AttemptStatusCompleted,
	}
	s.mu.Unlock()

	// The durable write happens outside the session lock; the submitting
	// flag keeps a concurrent submit from starting a second one.
	attemptID, err := sink.WriteAttempt(ctx, attempt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.submitting = false
		s.phase = PhaseActive
		s.log.Error().Err(err).Msg("Attempt write failed")
		return uuid.Nil, err
	}

	s.submitting = false
	s.phase = PhaseTerminated
	s.attemptID = attemptID
	if clearErr := s.store.Clear(ctx, s.id); clearErr != nil {
		s.log.Warn().Err(clearErr).Msg("Snapshot clear failed after submit")
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("score", attempt.Score).
		Int("time_spent_seconds", attempt.TimeSpentSeconds).
		Msg("Exam submitted")
	return attemptID, nil
}

// ─── Accessors ──────────────────────────────────────────────────────

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// ExamID returns the raw exam identifier this session was initialized with.
func (s *Session) ExamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.examID
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// TimeLeft returns the remaining seconds.
func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeLeft
}

// Cursor returns the current question index.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// QuestionCount returns the number of questions loaded into the session.
func (s *Session) QuestionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

// Submitting reports whether a durable write is outstanding.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Result returns the attempt identifier produced by a successful submission.
func (s *Session) Result() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseTerminated {
		return uuid.Nil, false
	}
	return s.attemptID, true
}

// LastActivity returns the time of the most recent mutation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Snapshot returns a copy of the persisted form of the current state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ─── Internals (callers hold s.mu) ──────────────────────────────────

func (s *Session) resetLocked() {
	s.examID = ""
	s.questions = nil
	s.cursor = 0
	s.answers = make(map[string]model.Option)
	s.flags = make(map[string]struct{})
	s.strikethroughs = make(map[string]map[model.Option]struct{})
	s.timeLeft = 0
	s.durationMinutes = 0
	s.submitting = false
	s.phase = PhaseUninitialized
	s.attemptID = uuid.Nil
	s.lastActivity = time.Now()
}

func (s *Session) snapshotLocked() *Snapshot {
	answers := make(map[string]model.Option, len(s.answers))
	for qid, opt := range s.answers {
		answers[qid] = opt
	}

	flags := make([]string, 0, len(s.flags))
	for qid := range s.flags {
		flags = append(flags, qid)
	}

	strikes := make(map[string][]model.Option, len(s.strikethroughs))
	for qid, set := range s.strikethroughs {
		opts := make([]model.Option, 0, len(set))
		for o := range set {
			opts = append(opts, o)
		}
		strikes[qid] = opts
	}

	return &Snapshot{
		SessionID:            s.id,
		ExamID:               s.examID,
		Questions:            s.questions,
		CurrentQuestionIndex: s.cursor,
		Answers:              answers,
		Flags:                flags,
		Strikethroughs:       strikes,
		TimeLeftSeconds:      s.timeLeft,
		DurationMinutes:      s.durationMinutes,
	}
}

// persistLocked saves the snapshot after a mutation. A failed save is logged
// but does not fail the mutation: the in-memory session stays authoritative
// and the next mutation retries the save.
func (s *Session) persistLocked(ctx context.Context) {
	s.lastActivity = time.Now()
	if err := s.store.Save(ctx, s.snapshotLocked()); err != nil {
		s.log.Warn().Err(err).Msg("Snapshot save failed")
	}
}
