package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
)

func newTestManager(store SnapshotStore, sink AttemptSink) *Manager {
	m := NewManager(store, sink, testLog)
	// Keep runner ticks out of short-lived tests.
	m.SetTickInterval(time.Hour)
	return m
}

func TestManagerStartAndResolve(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(NewMemoryStore(), &fakeSink{})
	defer m.Shutdown()

	examID := uuid.New()
	sess := m.Start(ctx, examID.String(), makeQuestions(examID, 3), 15)

	if sess.Phase() != PhaseActive {
		t.Fatalf("phase = %s, want %s", sess.Phase(), PhaseActive)
	}
	if sess.TimeLeft() != 15*60 {
		t.Errorf("timeLeft = %d, want %d", sess.TimeLeft(), 15*60)
	}

	resolved, err := m.Resolve(ctx, sess.ID())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != sess {
		t.Error("Resolve returned a different session instance")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestManagerResolveRestoresFromSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sink := &fakeSink{}

	// First process: start a session and mutate it.
	m1 := newTestManager(store, sink)
	examID := uuid.New()
	questions := makeQuestions(examID, 3)
	sess := m1.Start(ctx, examID.String(), questions, 15)
	sess.SetAnswer(ctx, questions[1].ID.String(), model.OptionC)
	sess.Navigate(ctx, 1)
	m1.Shutdown()

	// Second process: the snapshot is the only link to the session.
	m2 := newTestManager(store, sink)
	defer m2.Shutdown()

	restored, err := m2.Resolve(ctx, sess.ID())
	if err != nil {
		t.Fatalf("Resolve after restart: %v", err)
	}
	if restored.Cursor() != 1 {
		t.Errorf("restored cursor = %d, want 1", restored.Cursor())
	}
	snap := restored.Snapshot()
	if snap.Answers[questions[1].ID.String()] != model.OptionC {
		t.Errorf("restored answers = %v", snap.Answers)
	}
}

func TestManagerResolveUnknownSession(t *testing.T) {
	m := newTestManager(NewMemoryStore(), &fakeSink{})
	defer m.Shutdown()

	if _, err := m.Resolve(context.Background(), uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerResolveRejectsEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := newTestManager(store, &fakeSink{})
	defer m.Shutdown()

	// A snapshot without questions cannot be resumed.
	id := uuid.New()
	if err := store.Save(ctx, &Snapshot{SessionID: id, ExamID: uuid.New().String()}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := m.Resolve(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Error("unusable snapshot must be cleared")
	}
}

func TestManagerResolveTreatsCorruptSnapshotAsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := newTestManager(store, &fakeSink{})
	defer m.Shutdown()

	// A corrupt persisted payload must read as absent, not crash the resume.
	id := uuid.New()
	store.mu.Lock()
	store.snaps[id] = []byte("{not json")
	store.mu.Unlock()

	if _, err := m.Resolve(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerSubmitDetachesSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := newTestManager(store, &fakeSink{})
	defer m.Shutdown()

	examID := uuid.New()
	sess := m.Start(ctx, examID.String(), makeQuestions(examID, 2), 10)

	attemptID, err := m.Submit(ctx, sess.ID())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attemptID == uuid.Nil {
		t.Fatal("nil attempt ID")
	}
	if m.Count() != 0 {
		t.Errorf("Count after submit = %d, want 0", m.Count())
	}
	if store.Len() != 0 {
		t.Errorf("snapshots after submit = %d, want 0", store.Len())
	}

	// The session is gone for good: its snapshot was cleared on submit.
	if _, err := m.Resolve(ctx, sess.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Resolve after submit err = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerResetDetachesSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := newTestManager(store, &fakeSink{})
	defer m.Shutdown()

	examID := uuid.New()
	sess := m.Start(ctx, examID.String(), makeQuestions(examID, 2), 10)

	if err := m.Reset(ctx, sess.ID()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count after reset = %d, want 0", m.Count())
	}
	if store.Len() != 0 {
		t.Errorf("snapshots after reset = %d, want 0", store.Len())
	}
}

func TestManagerSweepRemovesIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := newTestManager(store, &fakeSink{})
	defer m.Shutdown()

	examID := uuid.New()
	m.Start(ctx, examID.String(), makeQuestions(examID, 2), 10)
	m.Start(ctx, examID.String(), makeQuestions(examID, 2), 10)

	// Nothing is stale yet.
	if removed := m.Sweep(ctx, time.Hour); removed != 0 {
		t.Fatalf("Sweep removed %d fresh sessions", removed)
	}

	// With a zero idle budget every session is stale.
	time.Sleep(5 * time.Millisecond)
	if removed := m.Sweep(ctx, 0); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if m.Count() != 0 {
		t.Errorf("Count after sweep = %d, want 0", m.Count())
	}
	if store.Len() != 0 {
		t.Errorf("snapshots after sweep = %d, want 0", store.Len())
	}
}
