package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/prepdeck/mockexam-backend/internal/repository"
	"github.com/prepdeck/mockexam-backend/internal/response"
	"github.com/rs/zerolog"
)

// ReviewPayload is what the read-only review surface renders: the attempt's
// answer map side by side with the full questions, correct options and
// explanations included. Only the stored answer map distinguishes a wrong
// answer from a blank one.
type ReviewPayload struct {
	Attempt   *model.Attempt   `json:"attempt"`
	ExamTitle string           `json:"exam_title"`
	Questions []model.Question `json:"questions"`
}

// AttemptService serves persisted attempts for review and history.
type AttemptService struct {
	attemptRepo  *repository.AttemptRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	log          zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:  attemptRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		log:          log.With().Str("component", "attempt_service").Logger(),
	}
}

// GetReview loads an attempt together with its exam's questions, ordered by
// order_num, for the color-coded comparison view.
func (s *AttemptService) GetReview(ctx context.Context, attemptID uuid.UUID) (*ReviewPayload, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := s.questionRepo.ListByExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return &ReviewPayload{
		Attempt:   attempt,
		ExamTitle: exam.Title,
		Questions: questions,
	}, nil
}

// History retrieves paginated attempts, newest first, optionally filtered by
// exam.
func (s *AttemptService) History(ctx context.Context, examID *uuid.UUID, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	attempts, total, err := s.attemptRepo.List(ctx, examID, page, perPage)
	if err != nil {
		return nil, nil, err
	}

	if attempts == nil {
		attempts = []model.Attempt{}
	}

	totalPages := (int(total) + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	}

	return attempts, pagination, nil
}
