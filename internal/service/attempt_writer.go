package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/config"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/prepdeck/mockexam-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AttemptWriter is the session.AttemptSink implementation: one durable
// PostgreSQL insert, then a best-effort enqueue for the answer-index worker.
// The attempts row is the source of truth; the queued payload only feeds the
// derived attempt_answers index.
type AttemptWriter struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAttemptWriter creates a new AttemptWriter.
func NewAttemptWriter(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AttemptWriter {
	return &AttemptWriter{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "attempt_writer").Logger(),
	}
}

// WriteAttempt persists the attempt and returns its generated identifier.
func (w *AttemptWriter) WriteAttempt(ctx context.Context, a *model.Attempt) (uuid.UUID, error) {
	if err := w.attempts.Create(ctx, a); err != nil {
		return uuid.Nil, err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"attempt_id": a.ID.String(),
		"exam_id":    a.ExamID.String(),
		"answers":    a.AnswersData,
	})
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptAnswersQueue, payload).Err(); err != nil {
		w.log.Warn().
			Err(err).
			Str("attempt_id", a.ID.String()).
			Msg("Answer-index enqueue failed")
	}

	return a.ID, nil
}
