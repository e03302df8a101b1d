package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/qtype"
	"github.com/assessly/assessly-backend/internal/repository"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/google/uuid"
)

// ErrNotQuestionCreator is returned when a non-admin edits someone else's question.
var ErrNotQuestionCreator = errors.New("not the creator of this question")

// QuestionService handles question bank business logic.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// GetByID retrieves a question.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return s.questionRepo.GetByID(ctx, id)
}

// List retrieves questions with pagination and optional type/category filters.
func (s *QuestionService) List(ctx context.Context, qt *model.QuestionType, category *string, page, perPage int) ([]model.Question, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	questions, total, err := s.questionRepo.ListPaginated(ctx, qt, category, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if questions == nil {
		questions = []model.Question{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return questions, pagination, nil
}

// Create validates the content payload against the type tag and inserts
// the question.
func (s *QuestionService) Create(ctx context.Context, req *model.CreateQuestionRequest, creatorID uuid.UUID) (*model.Question, error) {
	qt := model.QuestionType(req.Type)
	if _, err := qtype.Parse(qt, req.Content); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}

	q := &model.Question{
		Title:     req.Title,
		Type:      qt,
		Content:   req.Content,
		Points:    req.Points,
		Tags:      req.Tags,
		CreatorID: creatorID,
	}
	if req.Category != "" {
		q.Category = &req.Category
	}
	if q.Points == 0 {
		q.Points = 1
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}

	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update modifies a question. The type tag is immutable; new content is
// validated against the existing type.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuestionRequest, editorID uuid.UUID, isAdmin bool) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && q.CreatorID != editorID {
		return nil, ErrNotQuestionCreator
	}

	if req.Title != "" {
		q.Title = req.Title
	}
	if len(req.Content) > 0 {
		if _, err := qtype.Parse(q.Type, req.Content); err != nil {
			return nil, fmt.Errorf("invalid content: %w", err)
		}
		q.Content = req.Content
	}
	if req.Points != nil {
		q.Points = *req.Points
	}
	if req.Category != nil {
		q.Category = req.Category
	}
	if req.Tags != nil {
		q.Tags = req.Tags
	}

	if err := s.questionRepo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a question unless an assessment still references it.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID, editorID uuid.UUID, isAdmin bool) error {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && q.CreatorID != editorID {
		return ErrNotQuestionCreator
	}
	return s.questionRepo.Delete(ctx, id)
}
