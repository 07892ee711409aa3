package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/mockexam-backend/internal/model"
)

// AttemptRepository handles durable attempt records.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts an attempt and fills its generated ID and timestamp.
// Attempts are append-only; there is no update path.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	answersJSON, err := json.Marshal(a.AnswersData)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, score, time_spent_seconds, answers_data, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		a.ExamID, a.Score, a.TimeSpentSeconds, answersJSON, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
}

// GetByID retrieves a single attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answersJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, score, time_spent_seconds, answers_data, status, created_at
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.ExamID, &a.Score, &a.TimeSpentSeconds, &answersJSON, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answersJSON, &a.AnswersData); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return a, nil
}

// List retrieves attempts newest-first with pagination, optionally filtered
// by exam.
func (r *AttemptRepository) List(ctx context.Context, examID *uuid.UUID, page, perPage int) ([]model.Attempt, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := ` FROM attempts WHERE 1=1`
	args := []any{}

	if examID != nil {
		args = append(args, *examID)
		baseQuery += fmt.Sprintf(" AND exam_id = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, exam_id, score, time_spent_seconds, answers_data, status, created_at` +
		baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var answersJSON []byte
		if err := rows.Scan(&a.ID, &a.ExamID, &a.Score, &a.TimeSpentSeconds, &answersJSON, &a.Status, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(answersJSON, &a.AnswersData); err != nil {
			return nil, 0, fmt.Errorf("unmarshal answers: %w", err)
		}
		attempts = append(attempts, a)
	}

	return attempts, total, rows.Err()
}
