package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus tags the lifecycle of an attempt record.
type AttemptStatus string

const (
	AttemptStatusCompleted AttemptStatus = "completed"
)

// Attempt is the durable, append-only record of a completed exam submission.
// Never mutated after creation.
type Attempt struct {
	ID               uuid.UUID         `json:"id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	Score            int               `json:"score"`
	TimeSpentSeconds int               `json:"time_spent_seconds"`
	AnswersData      map[string]Option `json:"answers_data"`
	Status           AttemptStatus     `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}
