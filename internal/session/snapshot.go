package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
)

// ErrSnapshotNotFound is returned by a SnapshotStore when no usable snapshot
// exists for a session. A malformed persisted snapshot is reported the same
// way so callers fall back to a fresh session instead of resuming corrupt
// state.
var ErrSnapshotNotFound = errors.New("session snapshot not found")

// Snapshot is the persisted form of a session: everything needed to resume an
// in-progress attempt after a reload or a server restart. Written after every
// mutation, read once on resume, erased on reset or successful submission.
type Snapshot struct {
	SessionID            uuid.UUID                 `json:"session_id"`
	ExamID               string                    `json:"exam_id"`
	Questions            []model.Question          `json:"questions"`
	CurrentQuestionIndex int                       `json:"current_question_index"`
	Answers              map[string]model.Option   `json:"answers"`
	Flags                []string                  `json:"flags"`
	Strikethroughs       map[string][]model.Option `json:"strikethroughs"`
	TimeLeftSeconds      int                       `json:"time_left_seconds"`
	DurationMinutes      int                       `json:"duration_minutes"`
}

// SnapshotStore is the save-point abstraction the session core persists
// through. The production implementation is Redis-backed; tests use an
// in-memory one.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// AttemptSink receives the single durable write of the submission pipeline.
type AttemptSink interface {
	WriteAttempt(ctx context.Context, attempt *model.Attempt) (uuid.UUID, error)
}
