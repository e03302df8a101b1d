package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/grading"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/qtype"
	"github.com/assessly/assessly-backend/internal/repository"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNotAssessmentAuthor    = errors.New("not the author of this assessment")
	ErrNoQuestions            = errors.New("assessment has no questions, cannot publish")
	ErrAssessmentNotDraft     = errors.New("assessment status is not DRAFT")
	ErrAssessmentNotPublished = errors.New("assessment status is not PUBLISHED")
)

// answerKeyEntry is the per-question record cached in the Redis answer key
// hash: everything grading needs without touching PostgreSQL.
type answerKeyEntry struct {
	Type    model.QuestionType `json:"type"`
	Points  float64            `json:"points"`
	Content json.RawMessage    `json:"content"`
}

// AssessmentService handles assessment business logic and Redis caching.
type AssessmentService struct {
	assessmentRepo *repository.AssessmentRepository
	questionRepo   *repository.QuestionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	assessmentRepo *repository.AssessmentRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "assessment_service").Logger(),
	}
}

// GetByID retrieves an assessment by its UUID.
func (s *AssessmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	return s.assessmentRepo.GetByID(ctx, id)
}

// List retrieves assessments with pagination. Instructors see only their
// own; admins pass creatorID=nil to see everything.
func (s *AssessmentService) List(ctx context.Context, creatorID *uuid.UUID, status *model.AssessmentStatus, page, perPage int) ([]model.Assessment, *response.Pagination, error) {
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

	assessments, total, err := s.assessmentRepo.ListPaginated(ctx, creatorID, status, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if assessments == nil {
		assessments = []model.Assessment{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return assessments, pagination, nil
}

// Create inserts a new assessment as DRAFT. Question references with zero
// points inherit the question's own default.
func (s *AssessmentService) Create(ctx context.Context, req *model.CreateAssessmentRequest, creatorID uuid.UUID) (*model.Assessment, error) {
	settings := model.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	a := &model.Assessment{
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		Status:          model.AssessmentStatusDraft,
		Settings:        settings,
		Tags:            req.Tags,
		CreatorID:       creatorID,
	}
	if req.Description != "" {
		a.Description = &req.Description
	}
	if req.Category != "" {
		a.Category = &req.Category
	}
	if req.Level != "" {
		a.Level = &req.Level
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	refs, err := s.resolveQuestionRefs(ctx, req.Questions)
	if err != nil {
		return nil, err
	}
	a.Questions = refs

	if err := s.assessmentRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// resolveQuestionRefs validates referenced question IDs and fills default
// point values, assigning sequential order.
func (s *AssessmentService) resolveQuestionRefs(ctx context.Context, inputs []model.AssessmentQuestionInput) ([]model.AssessmentQuestion, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(inputs))
	for i, in := range inputs {
		ids[i] = in.QuestionID
	}
	questions, err := s.questionRepo.GetManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve questions: %w", err)
	}
	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	refs := make([]model.AssessmentQuestion, len(inputs))
	for i, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, fmt.Errorf("question %s does not exist", in.QuestionID)
		}
		points := in.Points
		if points == 0 {
			points = q.Points
		}
		refs[i] = model.AssessmentQuestion{
			QuestionID: in.QuestionID,
			Order:      i + 1,
			Points:     points,
			Required:   in.Required,
		}
	}
	return refs, nil
}

// Update modifies an existing draft assessment.
func (s *AssessmentService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateAssessmentRequest, editorID uuid.UUID, isAdmin bool) (*model.Assessment, error) {
	a, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.CreatorID != editorID {
		return nil, ErrNotAssessmentAuthor
	}
	if a.Status != model.AssessmentStatusDraft {
		return nil, ErrAssessmentNotDraft
	}

	if req.Title != "" {
		a.Title = req.Title
	}
	if req.Description != nil {
		a.Description = req.Description
	}
	if req.Category != nil {
		a.Category = req.Category
	}
	if req.Level != nil {
		a.Level = req.Level
	}
	if req.DurationMinutes > 0 {
		a.DurationMinutes = req.DurationMinutes
	}
	if req.Settings != nil {
		a.Settings = *req.Settings
	}
	if req.Tags != nil {
		a.Tags = req.Tags
	}
	if req.Questions != nil {
		refs, err := s.resolveQuestionRefs(ctx, req.Questions)
		if err != nil {
			return nil, err
		}
		a.Questions = refs
	}

	if err := s.assessmentRepo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Publish changes assessment status to PUBLISHED and caches the payload,
// answer key and settings in Redis. This is the path that populates the
// hot lane student requests read from.
func (s *AssessmentService) Publish(ctx context.Context, id uuid.UUID, editorID uuid.UUID, isAdmin bool) error {
	a, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get assessment: %w", err)
	}

	if !isAdmin && a.CreatorID != editorID {
		return ErrNotAssessmentAuthor
	}
	if a.Status != model.AssessmentStatusDraft {
		return ErrAssessmentNotDraft
	}

	if err := s.WarmAssessmentCache(ctx, a); err != nil {
		return err
	}

	if err := s.assessmentRepo.UpdateStatus(ctx, id, model.AssessmentStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("assessment_id", id.String()).Msg("Assessment published")
	return nil
}

// Archive retires a published assessment and drops its cache entries.
// Running attempts keep their cached start times and finish normally.
func (s *AssessmentService) Archive(ctx context.Context, id uuid.UUID, editorID uuid.UUID, isAdmin bool) error {
	a, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get assessment: %w", err)
	}

	if !isAdmin && a.CreatorID != editorID {
		return ErrNotAssessmentAuthor
	}
	if a.Status != model.AssessmentStatusPublished {
		return ErrAssessmentNotPublished
	}

	if err := s.assessmentRepo.UpdateStatus(ctx, id, model.AssessmentStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	aid := id.String()
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AssessmentPayloadKey(aid))
	pipe.Del(ctx, config.CacheKey.AssessmentKeyKey(aid))
	pipe.Del(ctx, config.CacheKey.AssessmentDurationKey(aid))
	pipe.Del(ctx, config.CacheKey.AssessmentSettingsKey(aid))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("assessment_id", aid).Msg("Failed to drop cache entries")
	}

	s.log.Info().Str("assessment_id", aid).Msg("Assessment archived")
	return nil
}

// RefreshCache re-caches the payload and answer key for a published
// assessment. Called when questions change after publish.
func (s *AssessmentService) RefreshCache(ctx context.Context, id uuid.UUID, editorID uuid.UUID, isAdmin bool) error {
	a, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get assessment: %w", err)
	}

	if !isAdmin && a.CreatorID != editorID {
		return ErrNotAssessmentAuthor
	}
	if a.Status != model.AssessmentStatusPublished {
		return ErrAssessmentNotPublished
	}

	if err := s.WarmAssessmentCache(ctx, a); err != nil {
		return err
	}

	s.log.Info().Str("assessment_id", id.String()).Msg("Cache refreshed")
	return nil
}

// WarmAssessmentCache loads an assessment's student payload, answer key
// and settings from PostgreSQL into Redis. Core cache-warming logic used
// by Publish, RefreshCache and PrewarmAllCaches.
func (s *AssessmentService) WarmAssessmentCache(ctx context.Context, a *model.Assessment) error {
	if len(a.Questions) == 0 {
		return ErrNoQuestions
	}

	refs := make([]model.AssessmentQuestion, len(a.Questions))
	copy(refs, a.Questions)
	sort.Slice(refs, func(i, j int) bool { return refs[i].Order < refs[j].Order })

	ids := make([]uuid.UUID, len(refs))
	for i, ref := range refs {
		ids[i] = ref.QuestionID
	}
	questions, err := s.questionRepo.GetManyByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	// Build the student-facing payload with correct answers stripped, and
	// the answer key hash for in-RAM grading.
	studentQuestions := make([]model.QuestionForStudent, 0, len(refs))
	answerKey := make(map[string]interface{}, len(refs))

	for _, ref := range refs {
		q, ok := byID[ref.QuestionID]
		if !ok {
			return fmt.Errorf("question %s referenced but missing", ref.QuestionID)
		}

		variant, err := qtype.Parse(q.Type, q.Content)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("question_id", q.ID.String()).
				Msg("Malformed question content, serving as unsupported")
			variant = qtype.Unsupported{Tag: string(q.Type)}
		}
		view, err := variant.StudentView()
		if err != nil {
			return fmt.Errorf("student view for %s: %w", q.ID, err)
		}

		studentQuestions = append(studentQuestions, model.QuestionForStudent{
			ID:       q.ID,
			Title:    q.Title,
			Type:     q.Type,
			Content:  view,
			Points:   ref.Points,
			Order:    ref.Order,
			Required: ref.Required,
		})

		entry, err := json.Marshal(answerKeyEntry{
			Type:    q.Type,
			Points:  ref.Points,
			Content: q.Content,
		})
		if err != nil {
			return fmt.Errorf("marshal key entry: %w", err)
		}
		answerKey[q.ID.String()] = entry
	}

	payload := model.AssessmentPayload{
		AssessmentID:    a.ID,
		Title:           a.Title,
		DurationMinutes: a.DurationMinutes,
		AllowReview:     a.Settings.AllowReview,
		BrowserSecurity: a.Settings.BrowserSecurity,
		Questions:       studentQuestions,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	settingsJSON, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	aid := a.ID.String()

	// Cache all entries atomically via pipeline.
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AssessmentPayloadKey(aid), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.AssessmentDurationKey(aid), strconv.Itoa(a.DurationMinutes), 0)
	pipe.Set(ctx, config.CacheKey.AssessmentSettingsKey(aid), settingsJSON, 0)
	pipe.Del(ctx, config.CacheKey.AssessmentKeyKey(aid))
	pipe.HSet(ctx, config.CacheKey.AssessmentKeyKey(aid), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("assessment_id", aid).
		Int("questions", len(studentQuestions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published assessments into Redis on startup.
// This prevents lazy-loading races under thundering herd traffic.
func (s *AssessmentService) PrewarmAllCaches(ctx context.Context) error {
	assessments, err := s.assessmentRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published assessments: %w", err)
	}

	if len(assessments) == 0 {
		s.log.Info().Msg("No published assessments to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(assessments)).Msg("Prewarming published assessments...")

	warmed := 0
	for i := range assessments {
		full, err := s.assessmentRepo.GetByID(ctx, assessments[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Str("assessment_id", assessments[i].ID.String()).Msg("Failed to load assessment, skipping")
			continue
		}
		if err := s.WarmAssessmentCache(ctx, full); err != nil {
			s.log.Warn().
				Err(err).
				Str("assessment_id", full.ID.String()).
				Msg("Failed to warm assessment, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(assessments)).
		Msg("Prewarming complete")
	return nil
}

// GetPayload retrieves the cached student paper from Redis, falling back
// to a rebuild from PostgreSQL on a cache miss.
func (s *AssessmentService) GetPayload(ctx context.Context, id uuid.UUID) (*model.AssessmentPayload, error) {
	key := config.CacheKey.AssessmentPayloadKey(id.String())
	data, err := s.rdb.Get(ctx, key).Bytes()

	if errors.Is(err, redis.Nil) {
		// Cache miss (evicted or server restarted mid-publish). Rebuild
		// from the source of truth, which also self-heals the cache.
		a, dbErr := s.assessmentRepo.GetByID(ctx, id)
		if dbErr != nil {
			return nil, fmt.Errorf("assessment not found in cache or db: %w", dbErr)
		}
		if a.Status != model.AssessmentStatusPublished {
			return nil, ErrAssessmentNotPublished
		}
		if err := s.WarmAssessmentCache(ctx, a); err != nil {
			return nil, err
		}
		data, err = s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			return nil, fmt.Errorf("get payload after rewarm: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.AssessmentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// GetAnswerKey retrieves the answer key from Redis for in-RAM grading.
func (s *AssessmentService) GetAnswerKey(ctx context.Context, id uuid.UUID) ([]grading.Question, error) {
	key := config.CacheKey.AssessmentKeyKey(id.String())
	result, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("answer key not found in cache")
	}

	questions := make([]grading.Question, 0, len(result))
	for idStr, raw := range result {
		qid, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid question id in key: %w", err)
		}
		var entry answerKeyEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal key entry: %w", err)
		}
		questions = append(questions, grading.Question{
			ID:      qid,
			Type:    entry.Type,
			Points:  entry.Points,
			Content: entry.Content,
		})
	}
	return questions, nil
}

// GetSettings retrieves the cached settings bundle, falling back to
// PostgreSQL on a miss.
func (s *AssessmentService) GetSettings(ctx context.Context, id uuid.UUID) (*model.AssessmentSettings, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.AssessmentSettingsKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		a, dbErr := s.assessmentRepo.GetByID(ctx, id)
		if dbErr != nil {
			return nil, fmt.Errorf("settings not found in cache or db: %w", dbErr)
		}
		return &a.Settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var settings model.AssessmentSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Delete removes a draft assessment.
func (s *AssessmentService) Delete(ctx context.Context, id uuid.UUID, editorID uuid.UUID, isAdmin bool) error {
	a, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && a.CreatorID != editorID {
		return ErrNotAssessmentAuthor
	}
	if a.Status != model.AssessmentStatusDraft {
		return ErrAssessmentNotDraft
	}
	return s.assessmentRepo.Delete(ctx, id)
}
