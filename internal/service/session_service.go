package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/prepdeck/mockexam-backend/internal/repository"
	"github.com/prepdeck/mockexam-backend/internal/session"
	"github.com/rs/zerolog"
)

// StartResult is returned when a session begins: the tab keeps the token and
// renders the payload.
type StartResult struct {
	SessionID       uuid.UUID          `json:"session_id"`
	Token           string             `json:"session_token"`
	TimeLeftSeconds int                `json:"time_left_seconds"`
	Exam            *model.ExamPayload `json:"exam"`
}

// SessionState is the resume-on-reload view of a session: everything the UI
// needs to rebuild itself, nothing it could cheat with.
type SessionState struct {
	SessionID            uuid.UUID                 `json:"session_id"`
	ExamID               string                    `json:"exam_id"`
	Phase                session.Phase             `json:"phase"`
	CurrentQuestionIndex int                       `json:"current_question_index"`
	Answers              map[string]model.Option   `json:"answers"`
	Flags                []string                  `json:"flags"`
	Strikethroughs       map[string][]model.Option `json:"strikethroughs"`
	TimeLeftSeconds      int                       `json:"time_left_seconds"`
	DurationMinutes      int                       `json:"duration_minutes"`
}

// SessionService coordinates session lifecycle: starting against exam data,
// resolving tokens to live sessions, submission, and reset.
type SessionService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	examService  *ExamService
	manager      *session.Manager
	log          zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	examService *ExamService,
	manager *session.Manager,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		examService:  examService,
		manager:      manager,
		log:          log.With().Str("component", "session_service").Logger(),
	}
}

// Start snapshots the exam's ordered questions into a fresh session and
// begins the countdown. Any previous session the tab held is simply
// abandoned; its snapshot expires on its own.
func (s *SessionService) Start(ctx context.Context, examID uuid.UUID) (*session.Session, *model.ExamPayload, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	sess := s.manager.Start(ctx, examID.String(), questions, exam.DurationMinutes)

	// The candidate payload normally comes from the Redis cache; a cache
	// outage degrades to building it from the rows already in hand.
	payload, err := s.examService.GetExamPayload(ctx, examID)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Payload cache miss, building locally")
		payload = BuildExamPayload(exam, questions)
	}
	return sess, payload, nil
}

// Resolve returns the live session for an ID, restoring from the snapshot
// store if needed.
func (s *SessionService) Resolve(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	return s.manager.Resolve(ctx, sessionID)
}

// State builds the resume view of a session.
func (s *SessionService) State(ctx context.Context, sessionID uuid.UUID) (*SessionState, error) {
	sess, err := s.manager.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := sess.Snapshot()
	return &SessionState{
		SessionID:            snap.SessionID,
		ExamID:               snap.ExamID,
		Phase:                sess.Phase(),
		CurrentQuestionIndex: snap.CurrentQuestionIndex,
		Answers:              snap.Answers,
		Flags:                snap.Flags,
		Strikethroughs:       snap.Strikethroughs,
		TimeLeftSeconds:      snap.TimeLeftSeconds,
		DurationMinutes:      snap.DurationMinutes,
	}, nil
}

// Submit runs the submission pipeline for the manual Finish Test path.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	return s.manager.Submit(ctx, sessionID)
}

// Reset discards a session and its persisted snapshot.
func (s *SessionService) Reset(ctx context.Context, sessionID uuid.UUID) error {
	return s.manager.Reset(ctx, sessionID)
}
