package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrQuestionReferenced = errors.New("question is referenced by one or more assessments")

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByID retrieves a question by its UUID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, type, content, points, category, tags, creator_id, created_at, updated_at
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Type, &q.Content, &q.Points, &q.Category, &q.Tags, &q.CreatorID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetManyByIDs retrieves questions for the given IDs in one round trip.
// The result order is unspecified; callers key by ID.
func (r *QuestionRepository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, type, content, points, category, tags, creator_id, created_at, updated_at
		 FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Title, &q.Type, &q.Content, &q.Points, &q.Category, &q.Tags, &q.CreatorID, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListPaginated retrieves questions with pagination and optional type and
// category filters.
func (r *QuestionRepository) ListPaginated(ctx context.Context, qtype *model.QuestionType, category *string, limit, offset int) ([]model.Question, int, error) {
	where := ``
	var filters []interface{}
	argIdx := 1

	if qtype != nil {
		where = ` WHERE type = $1`
		filters = append(filters, *qtype)
		argIdx++
	}
	if category != nil {
		if where == "" {
			where = ` WHERE category = $1`
		} else {
			where += ` AND category = $` + strconv.Itoa(argIdx)
		}
		filters = append(filters, *category)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, filters...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, type, content, points, category, tags, creator_id, created_at, updated_at
	          FROM questions` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args := append(filters, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Title, &q.Type, &q.Content, &q.Points, &q.Category, &q.Tags, &q.CreatorID, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (title, type, content, points, category, tags, creator_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		q.Title, q.Type, q.Content, q.Points, q.Category, q.Tags, q.CreatorID,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update modifies a question. The type is immutable after creation.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET title = $1, content = $2, points = $3, category = $4, tags = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		q.Title, q.Content, q.Points, q.Category, q.Tags, q.ID,
	)
	return err
}

// Delete removes a question by ID. Returns ErrQuestionReferenced when an
// assessment still references it.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrQuestionReferenced
		}
		return err
	}
	return nil
}
