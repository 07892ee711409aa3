package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
)

func TestRunnerAutoSubmitsWhenCountdownHitsZero(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	examID := uuid.New()
	questions := makeQuestions(examID, 3)
	s := New(uuid.New(), NewMemoryStore(), testLog)
	s.Init(ctx, examID.String(), questions, 1) // 60 seconds on the clock
	s.SetAnswer(ctx, questions[0].ID.String(), model.OptionA)

	sink := &fakeSink{}
	var submitted uuid.UUID
	runnerDone := make(chan struct{})
	runner := NewRunner(s, sink, time.Millisecond, func(id uuid.UUID) { submitted = id }, testLog)
	go func() {
		runner.Run(ctx)
		close(runnerDone)
	}()

	select {
	case <-runnerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish after countdown")
	}

	if got := sink.count(); got != 1 {
		t.Fatalf("durable writes = %d, want exactly 1", got)
	}
	attempt := sink.last()
	if attempt.TimeSpentSeconds != 60 {
		t.Errorf("time_spent_seconds = %d, want 60 (full duration on timeout)", attempt.TimeSpentSeconds)
	}
	if attempt.Score != 1 {
		t.Errorf("score = %d, want 1", attempt.Score)
	}
	if s.Phase() != PhaseTerminated {
		t.Errorf("phase = %s, want %s", s.Phase(), PhaseTerminated)
	}
	attemptID, ok := s.Result()
	if !ok {
		t.Fatal("Result() reported no attempt after auto-submit")
	}
	if submitted != attemptID {
		t.Errorf("onSubmitted got %s, Result() holds %s", submitted, attemptID)
	}
	if s.TimeLeft() != 0 {
		t.Errorf("timeLeft = %d, want 0", s.TimeLeft())
	}
}

func TestRunnerStopsAfterManualSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, _ := newActiveSession(t, NewMemoryStore(), 2)
	sink := &fakeSink{}

	runnerDone := make(chan struct{})
	runner := NewRunner(s, sink, time.Millisecond, nil, testLog)
	go func() {
		runner.Run(ctx)
		close(runnerDone)
	}()

	if _, err := s.Submit(ctx, sink); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-runnerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("runner kept ticking a terminated session")
	}

	if got := sink.count(); got != 1 {
		t.Errorf("durable writes = %d, want exactly 1 (no auto-submit after manual)", got)
	}
}

func TestRunnerIgnoresUninitializedSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := New(uuid.New(), NewMemoryStore(), testLog)
	sink := &fakeSink{}

	runnerDone := make(chan struct{})
	runner := NewRunner(s, sink, time.Millisecond, nil, testLog)
	go func() {
		runner.Run(ctx)
		close(runnerDone)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-runnerDone

	if sink.count() != 0 {
		t.Error("uninitialized session must never submit")
	}
	if s.Phase() != PhaseUninitialized {
		t.Errorf("phase = %s, want %s", s.Phase(), PhaseUninitialized)
	}
}
