package repository

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssessmentRepository handles assessment data access, including the
// ordered question references.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment with its question references.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	var settings []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, category, level, duration_minutes,
		        status, settings, tags, creator_id, created_at, updated_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.Level, &a.DurationMinutes,
		&a.Status, &settings, &a.Tags, &a.CreatorID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &a.Settings); err != nil {
		return nil, err
	}

	questions, err := r.listQuestionRefs(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Questions = questions
	return a, nil
}

func (r *AssessmentRepository) listQuestionRefs(ctx context.Context, assessmentID uuid.UUID) ([]model.AssessmentQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, order_num, points, required
		 FROM assessment_questions WHERE assessment_id = $1
		 ORDER BY order_num`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []model.AssessmentQuestion
	for rows.Next() {
		var q model.AssessmentQuestion
		if err := rows.Scan(&q.QuestionID, &q.Order, &q.Points, &q.Required); err != nil {
			return nil, err
		}
		refs = append(refs, q)
	}
	return refs, rows.Err()
}

// ListPaginated retrieves assessments with pagination. When creatorID is
// non-nil only that creator's assessments are returned.
func (r *AssessmentRepository) ListPaginated(ctx context.Context, creatorID *uuid.UUID, status *model.AssessmentStatus, limit, offset int) ([]model.Assessment, int, error) {
	where := ``
	var filters []interface{}
	argIdx := 1

	if creatorID != nil {
		where = ` WHERE creator_id = $1`
		filters = append(filters, *creatorID)
		argIdx++
	}
	if status != nil {
		if where == "" {
			where = ` WHERE status = $1`
		} else {
			where += ` AND status = $` + strconv.Itoa(argIdx)
		}
		filters = append(filters, *status)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assessments`+where, filters...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, description, category, level, duration_minutes,
	                 status, settings, tags, creator_id, created_at, updated_at
	          FROM assessments` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args := append(filters, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		var a model.Assessment
		var settings []byte
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.Level, &a.DurationMinutes,
			&a.Status, &settings, &a.Tags, &a.CreatorID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(settings, &a.Settings); err != nil {
			return nil, 0, err
		}
		assessments = append(assessments, a)
	}
	return assessments, total, rows.Err()
}

// Create inserts a new assessment and its question references in one
// transaction.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO assessments (title, description, category, level, duration_minutes, status, settings, tags, creator_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.Description, a.Category, a.Level, a.DurationMinutes,
		a.Status, settings, a.Tags, a.CreatorID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return err
	}

	for _, q := range a.Questions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO assessment_questions (assessment_id, question_id, order_num, points, required)
			 VALUES ($1, $2, $3, $4, $5)`,
			a.ID, q.QuestionID, q.Order, q.Points, q.Required,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Update rewrites an assessment's fields and replaces its question
// references in one transaction.
func (r *AssessmentRepository) Update(ctx context.Context, a *model.Assessment) error {
	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE assessments
		 SET title = $1, description = $2, category = $3, level = $4, duration_minutes = $5,
		     settings = $6, tags = $7, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $8`,
		a.Title, a.Description, a.Category, a.Level, a.DurationMinutes,
		settings, a.Tags, a.ID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM assessment_questions WHERE assessment_id = $1`, a.ID,
	); err != nil {
		return err
	}

	for _, q := range a.Questions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO assessment_questions (assessment_id, question_id, order_num, points, required)
			 VALUES ($1, $2, $3, $4, $5)`,
			a.ID, q.QuestionID, q.Order, q.Points, q.Required,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// UpdateStatus updates an assessment's lifecycle status.
func (r *AssessmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssessmentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		status, id)
	return err
}

// ListPublished returns all assessments with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *AssessmentRepository) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, category, level, duration_minutes,
		        status, settings, tags, creator_id, created_at, updated_at
		 FROM assessments WHERE status = $1
		 ORDER BY created_at DESC`, model.AssessmentStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		var a model.Assessment
		var settings []byte
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.Level, &a.DurationMinutes,
			&a.Status, &settings, &a.Tags, &a.CreatorID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(settings, &a.Settings); err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// Delete removes an assessment and its question references.
func (r *AssessmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	return err
}
