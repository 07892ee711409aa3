package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is immutable reference data: created by the seeding process, never
// mutated by the exam-taking surface.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExamPayload is the Redis-cached payload sent to candidates (no correct
// answers, no explanations).
type ExamPayload struct {
	ExamID    uuid.UUID              `json:"exam_id"`
	Title     string                 `json:"title"`
	Duration  int                    `json:"duration_minutes"`
	Questions []QuestionForCandidate `json:"questions"`
}
