package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	FinalizeBatchSize    = 50
	FinalizeBatchTimeout = 2 * time.Second
	FinalizePollTimeout  = 1 * time.Second
)

// FinalizeWorker consumes finalize_attempts_queue: it moves attempts into
// their terminal state with the grading outcome, writes the graded
// answers, and clears the Redis autosave buffers.
type FinalizeWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewFinalizeWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *FinalizeWorker {
	return &FinalizeWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "finalize_worker").Logger(),
	}
}

type finalizePayload struct {
	AttemptID        string                    `json:"attempt_id"`
	AssessmentID     string                    `json:"assessment_id"`
	UserID           string                    `json:"user_id"`
	Status           string                    `json:"status"`
	CompletedAt      int64                     `json:"completed_at"`
	TimeSpentSeconds int                       `json:"time_spent_seconds"`
	Score            *float64                  `json:"score"`
	Passed           *bool                     `json:"passed"`
	Answers          []finalizeAnswerPayload   `json:"answers"`
	Violations       []finalizeViolationRecord `json:"violations,omitempty"`
}

type finalizeAnswerPayload struct {
	QuestionID       string   `json:"question_id"`
	Value            string   `json:"value"`
	Score            *float64 `json:"score"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
}

type finalizeViolationRecord struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details"`
}

func (w *FinalizeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("FinalizeWorker started")

	batch := make([]*finalizePayload, 0, FinalizeBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= FinalizeBatchSize || time.Since(lastFlush) >= FinalizeBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, FinalizePollTimeout, config.WorkerKey.FinalizeAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p finalizePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *FinalizeWorker) flushSafe(ctx context.Context, batch []*finalizePayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkFinalizeAttempts(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk finalize failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.FinalizeAttemptsQueue, raw)
				continue
			}
			w.writeDetails(ctx, p)
		}
		w.bulkClearBuffers(ctx, batch)
		return
	}

	// Graded answers and violations ride along in the job payload.
	for _, p := range batch {
		w.writeDetails(ctx, p)
	}

	// After successful DB writes → delete autosave buffers in Redis.
	w.bulkClearBuffers(ctx, batch)
}

// bulkFinalizeAttempts moves a batch of attempts to their terminal state
// with one UNNEST round trip. The status guard keeps already-finalized
// rows untouched, so a duplicate job is harmless.
func (w *FinalizeWorker) bulkFinalizeAttempts(ctx context.Context, batch []*finalizePayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	statuses := make([]string, 0, n)
	completedAts := make([]time.Time, 0, n)
	timeSpents := make([]int, 0, n)
	scores := make([]*float64, 0, n)
	passeds := make([]*bool, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		statuses = append(statuses, p.Status)
		completedAts = append(completedAts, time.Unix(p.CompletedAt, 0))
		timeSpents = append(timeSpents, p.TimeSpentSeconds)
		scores = append(scores, p.Score)
		passeds = append(passeds, p.Passed)
	}

	query := `
		UPDATE attempts AS a
		SET status = t.status,
		    completed_at = t.completed_at,
		    time_spent_seconds = t.time_spent_seconds,
		    score = t.score,
		    passed = t.passed
		FROM (
			SELECT
				u.id,
				u.status,
				u.completed_at,
				u.time_spent_seconds,
				u.score,
				u.passed
			FROM UNNEST(
				$1::uuid[],
				$2::text[],
				$3::timestamptz[],
				$4::int[],
				$5::float8[],
				$6::bool[]
			) AS u (id, status, completed_at, time_spent_seconds, score, passed)
		) AS t
		WHERE a.id = t.id
		  AND a.status = 'IN_PROGRESS'
	`

	_, err := w.pool.Exec(ctx, query, ids, statuses, completedAts, timeSpents, scores, passeds)
	return err
}

// writeDetails persists the graded answers and any session-carried
// violations for one finalized attempt.
func (w *FinalizeWorker) writeDetails(ctx context.Context, p *finalizePayload) {
	attemptID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return
	}

	for _, ans := range p.Answers {
		questionID, err := uuid.Parse(ans.QuestionID)
		if err != nil {
			continue
		}
		_, err = w.pool.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, value, score, time_spent_seconds)
			 VALUES ($1, $2, $3::jsonb, $4, $5)
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET value = EXCLUDED.value, score = EXCLUDED.score,
			     time_spent_seconds = EXCLUDED.time_spent_seconds, updated_at = NOW()`,
			attemptID, questionID, ans.Value, ans.Score, ans.TimeSpentSeconds,
		)
		if err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", p.AttemptID).
				Str("question_id", ans.QuestionID).
				Msg("Answer write failed")
		}
	}

	for _, v := range p.Violations {
		_, err = w.pool.Exec(ctx,
			`INSERT INTO violations (attempt_id, type, occurred_at, details)
			 VALUES ($1, $2, $3, $4)`,
			attemptID, v.Type, time.Unix(v.Timestamp, 0), v.Details,
		)
		if err != nil {
			w.log.Error().Err(err).Str("attempt_id", p.AttemptID).Msg("Violation write failed")
		}
	}
}

// bulkClearBuffers drops the Redis autosave hash and start-time key of
// every finalized attempt in one pipeline.
func (w *FinalizeWorker) bulkClearBuffers(ctx context.Context, batch []*finalizePayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(p.AssessmentID, p.UserID))
		pipe.Del(ctx, config.CacheKey.AttemptStartKey(p.AssessmentID, p.UserID))
	}

	_, _ = pipe.Exec(ctx)
}

// persistSingle is the fallback update for one attempt.
func (w *FinalizeWorker) persistSingle(ctx context.Context, p *finalizePayload) error {
	id, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1,
		     completed_at = $2,
		     time_spent_seconds = $3,
		     score = $4,
		     passed = $5
		 WHERE id = $6 AND status = 'IN_PROGRESS'`,
		p.Status, time.Unix(p.CompletedAt, 0), p.TimeSpentSeconds, p.Score, p.Passed, id,
	)

	return err
}
