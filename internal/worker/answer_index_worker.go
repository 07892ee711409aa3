package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/mockexam-backend/internal/config"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AnswerIndexWorker consumes persist_attempt_answers_queue and fans each
// attempt's answer map out into per-question attempt_answers rows. The rows
// are a derived index for per-question statistics; the attempts.answers_data
// column stays the source of truth, so a lost payload degrades analytics but
// never a result.
type AnswerIndexWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAnswerIndexWorker creates a new AnswerIndexWorker.
func NewAnswerIndexWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswerIndexWorker {
	return &AnswerIndexWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_index_worker").Logger(),
	}
}

type attemptAnswersPayload struct {
	AttemptID string                  `json:"attempt_id"`
	ExamID    string                  `json:"exam_id"`
	Answers   map[string]model.Option `json:"answers"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerIndexWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*attemptAnswersPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAttemptAnswersQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload attemptAnswersPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed payload")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then per-attempt fallback, then requeue.
func (w *AnswerIndexWorker) flushSafe(ctx context.Context, batch []*attemptAnswersPayload) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting per-attempt recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *AnswerIndexWorker) bulkInsert(ctx context.Context, batch []*attemptAnswersPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		attemptID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			w.log.Error().Str("attempt_id", p.AttemptID).Msg("Dropping payload with invalid attempt UUID")
			continue
		}
		for qid, opt := range p.Answers {
			questionID, err := uuid.Parse(qid)
			if err != nil {
				continue
			}
			rows = append(rows, []interface{}{attemptID, questionID, string(opt)})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_answers"},
		[]string{"attempt_id", "question_id", "selected_option"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *AnswerIndexWorker) fallbackInsert(ctx context.Context, batch []*attemptAnswersPayload) {
	requeueList := make([]*attemptAnswersPayload, 0)

	for _, p := range batch {
		attemptID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			continue
		}

		failed := false
		for qid, opt := range p.Answers {
			questionID, err := uuid.Parse(qid)
			if err != nil {
				continue
			}
			_, err = w.pool.Exec(ctx,
				`INSERT INTO attempt_answers (attempt_id, question_id, selected_option)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (attempt_id, question_id) DO NOTHING`,
				attemptID, questionID, string(opt),
			)
			if err != nil {
				failed = true
				break
			}
		}

		if failed {
			w.log.Error().Str("attempt_id", p.AttemptID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AnswerIndexWorker) requeue(ctx context.Context, items []*attemptAnswersPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistAttemptAnswersQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}

	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Back off so a hard-down database is not hammered in a tight loop.
	time.Sleep(2 * time.Second)
}

func (w *AnswerIndexWorker) shutdown(buffer []*attemptAnswersPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
