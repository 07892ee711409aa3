package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/rs/zerolog"
)

var testLog = zerolog.Nop()

// fakeSink records every durable write. Optional failure injection and
// blocking let tests exercise the in-flight and retry paths.
type fakeSink struct {
	mu      sync.Mutex
	writes  []*model.Attempt
	failErr error
	release chan struct{} // If set, WriteAttempt blocks until closed
}

func (f *fakeSink) WriteAttempt(_ context.Context, a *model.Attempt) (uuid.UUID, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return uuid.Nil, f.failErr
	}
	f.writes = append(f.writes, a)
	return uuid.New(), nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeSink) last() *model.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

// makeQuestions builds n questions for examID, all keyed "A" correct.
func makeQuestions(examID uuid.UUID, n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:            uuid.New(),
			ExamID:        examID,
			QuestionText:  fmt.Sprintf("question %d", i+1),
			OptionA:       "first",
			OptionB:       "second",
			OptionC:       "third",
			CorrectOption: model.OptionA,
			OrderNum:      i + 1,
		}
	}
	return questions
}

func newActiveSession(t *testing.T, store SnapshotStore, questionCount int) (*Session, []model.Question) {
	t.Helper()
	examID := uuid.New()
	questions := makeQuestions(examID, questionCount)
	s := New(uuid.New(), store, testLog)
	s.Init(context.Background(), examID.String(), questions, 30)
	return s, questions
}

func TestInitReplacesExistingState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, questions := newActiveSession(t, store, 3)

	s.SetAnswer(ctx, questions[0].ID.String(), model.OptionB)
	s.Navigate(ctx, 2)
	s.Tick(ctx)

	examID := uuid.New()
	fresh := makeQuestions(examID, 5)
	s.Init(ctx, examID.String(), fresh, 10)

	if s.Phase() != PhaseActive {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseActive)
	}
	if s.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", s.Cursor())
	}
	if got := s.TimeLeft(); got != 600 {
		t.Errorf("timeLeft = %d, want 600", got)
	}
	if snap := s.Snapshot(); len(snap.Answers) != 0 {
		t.Errorf("answers after re-init = %d, want 0", len(snap.Answers))
	}
}

func TestSetAnswerLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s, questions := newActiveSession(t, NewMemoryStore(), 3)
	qid := questions[0].ID.String()

	s.SetAnswer(ctx, qid, model.OptionA)
	s.SetAnswer(ctx, qid, model.OptionC)
	s.SetAnswer(ctx, qid, model.OptionB)

	snap := s.Snapshot()
	if got := snap.Answers[qid]; got != model.OptionB {
		t.Errorf("answer = %q, want %q", got, model.OptionB)
	}
	if len(snap.Answers) != 1 {
		t.Errorf("answer count = %d, want 1", len(snap.Answers))
	}
}

func TestMutationsIgnoredWhenNotActive(t *testing.T) {
	ctx := context.Background()
	s := New(uuid.New(), NewMemoryStore(), testLog)

	s.SetAnswer(ctx, uuid.New().String(), model.OptionA)
	s.ToggleFlag(ctx, uuid.New().String())
	s.Navigate(ctx, 1)

	snap := s.Snapshot()
	if len(snap.Answers) != 0 || len(snap.Flags) != 0 || snap.CurrentQuestionIndex != 0 {
		t.Errorf("uninitialized session mutated: %+v", snap)
	}
}

func TestToggleFlagRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, questions := newActiveSession(t, NewMemoryStore(), 3)
	qid := questions[1].ID.String()

	s.ToggleFlag(ctx, qid)
	if snap := s.Snapshot(); len(snap.Flags) != 1 || snap.Flags[0] != qid {
		t.Fatalf("flags after first toggle = %v, want [%s]", snap.Flags, qid)
	}

	s.ToggleFlag(ctx, qid)
	if snap := s.Snapshot(); len(snap.Flags) != 0 {
		t.Errorf("flags after second toggle = %v, want empty", snap.Flags)
	}
}

func TestToggleStrikethroughIndependentOfAnswer(t *testing.T) {
	ctx := context.Background()
	s, questions := newActiveSession(t, NewMemoryStore(), 3)
	qid := questions[0].ID.String()

	s.SetAnswer(ctx, qid, model.OptionB)
	s.ToggleStrikethrough(ctx, qid, model.OptionB)

	snap := s.Snapshot()
	if got := snap.Answers[qid]; got != model.OptionB {
		t.Errorf("answer = %q, want %q (strikethrough must not clear answers)", got, model.OptionB)
	}
	if got := snap.Strikethroughs[qid]; len(got) != 1 || got[0] != model.OptionB {
		t.Errorf("strikethroughs = %v, want [B]", got)
	}

	s.ToggleStrikethrough(ctx, qid, model.OptionB)
	if snap := s.Snapshot(); len(snap.Strikethroughs[qid]) != 0 {
		t.Errorf("strikethroughs after second toggle = %v, want empty", snap.Strikethroughs[qid])
	}
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   int
	}{
		{"forward in range", 2, 2},
		{"negative ignored", -1, 0},
		{"equal to length ignored", 3, 0},
		{"far out of range ignored", 5, 0},
		{"first question", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newActiveSession(t, NewMemoryStore(), 3)
			s.Navigate(ctx, tt.target)
			if got := s.Cursor(); got != tt.want {
				t.Errorf("cursor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTickFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	examID := uuid.New()
	s := New(uuid.New(), NewMemoryStore(), testLog)
	s.Init(ctx, examID.String(), makeQuestions(examID, 1), 1)

	for i := 0; i < 65; i++ {
		s.Tick(ctx)
	}
	if got := s.TimeLeft(); got != 0 {
		t.Errorf("timeLeft = %d, want 0", got)
	}
}

func TestSubmitScoresAnsweredQuestionsOnly(t *testing.T) {
	ctx := context.Background()
	examID := uuid.New()
	questions := makeQuestions(examID, 20)
	s := New(uuid.New(), NewMemoryStore(), testLog)
	s.Init(ctx, examID.String(), questions, 30)

	// Answer 15 of 20: the first 8 correctly, the next 7 wrong.
	for i := 0; i < 8; i++ {
		s.SetAnswer(ctx, questions[i].ID.String(), model.OptionA)
	}
	for i := 8; i < 15; i++ {
		s.SetAnswer(ctx, questions[i].ID.String(), model.OptionB)
	}

	// Burn 90 seconds off the clock.
	for i := 0; i < 90; i++ {
		s.Tick(ctx)
	}

	sink := &fakeSink{}
	attemptID, err := s.Submit(ctx, sink)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attemptID == uuid.Nil {
		t.Fatal("Submit returned nil attempt ID")
	}

	attempt := sink.last()
	if attempt == nil {
		t.Fatal("no attempt written")
	}
	if attempt.Score != 8 {
		t.Errorf("score = %d, want 8", attempt.Score)
	}
	if len(attempt.AnswersData) != 15 {
		t.Errorf("answers_data size = %d, want 15 (blanks must be absent, not empty)", len(attempt.AnswersData))
	}
	if attempt.TimeSpentSeconds != 90 {
		t.Errorf("time_spent_seconds = %d, want 90", attempt.TimeSpentSeconds)
	}
	if attempt.Status != model.AttemptStatusCompleted {
		t.Errorf("status = %q, want %q", attempt.Status, model.AttemptStatusCompleted)
	}
	if s.Phase() != PhaseTerminated {
		t.Errorf("phase = %s, want %s", s.Phase(), PhaseTerminated)
	}
}

func TestSubmitDropsAnswersForUnknownQuestions(t *testing.T) {
	ctx := context.Background()
	s, questions := newActiveSession(t, NewMemoryStore(), 3)

	s.SetAnswer(ctx, questions[0].ID.String(), model.OptionA)
	s.SetAnswer(ctx, uuid.New().String(), model.OptionC) // Not in this exam

	sink := &fakeSink{}
	if _, err := s.Submit(ctx, sink); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	attempt := sink.last()
	if len(attempt.AnswersData) != 1 {
		t.Errorf("answers_data size = %d, want 1", len(attempt.AnswersData))
	}
	if attempt.Score != 1 {
		t.Errorf("score = %d, want 1", attempt.Score)
	}
}

func TestSubmitInFlightRejectsSecondCall(t *testing.T) {
	ctx := context.Background()
	s, _ := newActiveSession(t, NewMemoryStore(), 3)

	release := make(chan struct{})
	sink := &fakeSink{release: release}

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, sink)
		firstDone <- err
	}()

	// Wait until the first submit holds the submitting flag.
	deadline := time.Now().Add(2 * time.Second)
	for s.Phase() != PhaseSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("first submit never reached SUBMITTING")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Submit(ctx, sink); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit err = %v, want ErrSubmitInFlight", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("durable writes = %d, want exactly 1", got)
	}
}

func TestSubmitAfterTerminationRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newActiveSession(t, NewMemoryStore(), 3)
	sink := &fakeSink{}

	if _, err := s.Submit(ctx, sink); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := s.Submit(ctx, sink); !errors.Is(err, ErrNotActive) {
		t.Errorf("submit after termination err = %v, want ErrNotActive", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("durable writes = %d, want exactly 1", got)
	}
}

func TestSubmitFailureKeepsSessionActive(t *testing.T) {
	ctx := context.Background()
	s, questions := newActiveSession(t, NewMemoryStore(), 3)
	s.SetAnswer(ctx, questions[0].ID.String(), model.OptionA)

	failing := &fakeSink{failErr: errors.New("database down")}
	if _, err := s.Submit(ctx, failing); err == nil {
		t.Fatal("expected submit failure")
	}

	if s.Phase() != PhaseActive {
		t.Fatalf("phase after failed submit = %s, want %s", s.Phase(), PhaseActive)
	}
	if snap := s.Snapshot(); len(snap.Answers) != 1 {
		t.Errorf("answers lost on failed submit: %v", snap.Answers)
	}

	// Retry against a healthy sink succeeds.
	sink := &fakeSink{}
	if _, err := s.Submit(ctx, sink); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("durable writes on retry = %d, want 1", got)
	}
}

func TestSubmitRejectsMalformedExamID(t *testing.T) {
	ctx := context.Background()
	s := New(uuid.New(), NewMemoryStore(), testLog)
	s.Init(ctx, "not-a-uuid", makeQuestions(uuid.New(), 2), 10)

	sink := &fakeSink{}
	if _, err := s.Submit(ctx, sink); !errors.Is(err, ErrInvalidExamID) {
		t.Errorf("err = %v, want ErrInvalidExamID", err)
	}
	if sink.count() != 0 {
		t.Error("no attempt may be written for a malformed exam ID")
	}
	if s.Phase() != PhaseActive {
		t.Errorf("phase = %s, want %s", s.Phase(), PhaseActive)
	}
}

func TestSubmitClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := newActiveSession(t, store, 3)

	if store.Len() != 1 {
		t.Fatalf("snapshots before submit = %d, want 1", store.Len())
	}
	if _, err := s.Submit(ctx, &fakeSink{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("snapshots after submit = %d, want 0", store.Len())
	}
}

func TestResetClearsStateAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, questions := newActiveSession(t, store, 3)
	s.SetAnswer(ctx, questions[0].ID.String(), model.OptionC)

	s.Reset(ctx)

	if s.Phase() != PhaseUninitialized {
		t.Errorf("phase = %s, want %s", s.Phase(), PhaseUninitialized)
	}
	if store.Len() != 0 {
		t.Errorf("snapshots after reset = %d, want 0", store.Len())
	}
	if snap := s.Snapshot(); len(snap.Answers) != 0 || snap.TimeLeftSeconds != 0 {
		t.Errorf("state survived reset: %+v", snap)
	}
}

func TestSnapshotRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, questions := newActiveSession(t, store, 3)
	qid := questions[2].ID.String()

	s.SetAnswer(ctx, qid, model.OptionB)
	s.ToggleFlag(ctx, qid)
	s.ToggleStrikethrough(ctx, qid, model.OptionA)
	s.Navigate(ctx, 2)
	s.Tick(ctx)

	snap, err := store.Load(ctx, s.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	restored := Restore(snap, store, testLog)
	if restored.Phase() != PhaseActive {
		t.Fatalf("restored phase = %s, want %s", restored.Phase(), PhaseActive)
	}
	if restored.Cursor() != 2 {
		t.Errorf("restored cursor = %d, want 2", restored.Cursor())
	}
	if restored.TimeLeft() != s.TimeLeft() {
		t.Errorf("restored timeLeft = %d, want %d", restored.TimeLeft(), s.TimeLeft())
	}

	rsnap := restored.Snapshot()
	if rsnap.Answers[qid] != model.OptionB {
		t.Errorf("restored answer = %q, want B", rsnap.Answers[qid])
	}
	if len(rsnap.Flags) != 1 || rsnap.Flags[0] != qid {
		t.Errorf("restored flags = %v, want [%s]", rsnap.Flags, qid)
	}
	if got := rsnap.Strikethroughs[qid]; len(got) != 1 || got[0] != model.OptionA {
		t.Errorf("restored strikethroughs = %v, want [A]", got)
	}
}
