package repository

import (
	"context"
	"time"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository handles attempt, answer and violation data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt in IN_PROGRESS state.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (assessment_id, user_id, started_at, status, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.AssessmentID, a.UserID, a.StartedAt, a.Status, a.IPAddress, a.UserAgent,
	).Scan(&a.ID)
}

// GetByID retrieves an attempt without its answers or violations.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assessment_id, user_id, started_at, completed_at, status,
		        time_spent_seconds, score, passed, ip_address, user_agent
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.StartedAt, &a.CompletedAt, &a.Status,
		&a.TimeSpentSeconds, &a.Score, &a.Passed, &a.IPAddress, &a.UserAgent)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetActive returns the user's IN_PROGRESS attempt on an assessment, or
// pgx.ErrNoRows when there is none.
func (r *AttemptRepository) GetActive(ctx context.Context, assessmentID, userID uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assessment_id, user_id, started_at, completed_at, status,
		        time_spent_seconds, score, passed, ip_address, user_agent
		 FROM attempts
		 WHERE assessment_id = $1 AND user_id = $2 AND status = $3
		 ORDER BY started_at DESC LIMIT 1`,
		assessmentID, userID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.StartedAt, &a.CompletedAt, &a.Status,
		&a.TimeSpentSeconds, &a.Score, &a.Passed, &a.IPAddress, &a.UserAgent)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CountByUser returns how many attempts the user has made on an assessment,
// terminal or not. Used for the maxAttempts gate.
func (r *AttemptRepository) CountByUser(ctx context.Context, assessmentID, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1 AND user_id = $2`,
		assessmentID, userID,
	).Scan(&n)
	return n, err
}

// ListAnswers loads all answer rows for an attempt.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, value, score, feedback, time_spent_seconds
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var ans model.AttemptAnswer
		var value []byte
		if err := rows.Scan(&ans.QuestionID, &value, &ans.Score, &ans.Feedback, &ans.TimeSpentSeconds); err != nil {
			return nil, err
		}
		if err := ans.Value.UnmarshalJSON(value); err != nil {
			return nil, err
		}
		answers = append(answers, ans)
	}
	return answers, rows.Err()
}

// ListViolations loads an attempt's violations in chronological order.
func (r *AttemptRepository) ListViolations(ctx context.Context, attemptID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, occurred_at, details
		 FROM violations WHERE attempt_id = $1
		 ORDER BY occurred_at`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.Type, &v.Timestamp, &v.Details); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// ListByAssessmentPaginated retrieves finished and running attempts for an
// assessment, newest first. Used by the results view.
func (r *AttemptRepository) ListByAssessmentPaginated(ctx context.Context, assessmentID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`, assessmentID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, user_id, started_at, completed_at, status,
		        time_spent_seconds, score, passed, ip_address, user_agent
		 FROM attempts WHERE assessment_id = $1
		 ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
		assessmentID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.StartedAt, &a.CompletedAt, &a.Status,
			&a.TimeSpentSeconds, &a.Score, &a.Passed, &a.IPAddress, &a.UserAgent); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// ListByUserPaginated retrieves one user's attempt history across
// assessments, newest first.
func (r *AttemptRepository) ListByUserPaginated(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, user_id, started_at, completed_at, status,
		        time_spent_seconds, score, passed, ip_address, user_agent
		 FROM attempts WHERE user_id = $1
		 ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.StartedAt, &a.CompletedAt, &a.Status,
			&a.TimeSpentSeconds, &a.Score, &a.Passed, &a.IPAddress, &a.UserAgent); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// ListStale returns IN_PROGRESS attempts whose deadline passed more than
// the grace window ago. The reaper finalizes them as timed out; the
// finalize worker's status guard keeps a concurrent submit from being
// overwritten.
func (r *AttemptRepository) ListStale(ctx context.Context, grace time.Duration) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.assessment_id, a.user_id, a.started_at, a.completed_at, a.status,
		        a.time_spent_seconds, a.score, a.passed, a.ip_address, a.user_agent
		 FROM attempts a
		 JOIN assessments s ON s.id = a.assessment_id
		 WHERE a.status = $1
		   AND a.started_at + make_interval(mins => s.duration_minutes) < NOW() - $2::interval`,
		model.AttemptStatusInProgress, grace.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.StartedAt, &a.CompletedAt, &a.Status,
			&a.TimeSpentSeconds, &a.Score, &a.Passed, &a.IPAddress, &a.UserAgent); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
