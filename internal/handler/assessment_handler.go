package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/assessly/assessly-backend/internal/service"
	"github.com/assessly/assessly-backend/internal/validator"
)

// AssessmentHandler handles the assessment authoring endpoints (staff only).
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	attemptService    *service.AttemptService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessmentService *service.AssessmentService, attemptService *service.AttemptService) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		attemptService:    attemptService,
	}
}

// List godoc
// GET /api/v1/admin/assessments?status=&mine=&page=&per_page=
// Instructors see only their own assessments; admins see everything
// unless they pass mine=true.
func (h *AssessmentHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := parsePagination(c)

	var status *model.AssessmentStatus
	if st := c.Query("status"); st != "" {
		v := model.AssessmentStatus(strings.ToUpper(st))
		status = &v
	}

	var creatorID *uuid.UUID
	if claims.Role != model.RoleAdmin || c.Query("mine") == "true" {
		id := claims.UserID
		creatorID = &id
	}

	assessments, pagination, err := h.assessmentService.List(c.Request.Context(), creatorID, status, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, assessments, pagination)
}

// Get godoc
// GET /api/v1/admin/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, assessment)
}

// Create godoc
// POST /api/v1/admin/assessments
// New assessments always start as drafts.
func (h *AssessmentHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessmentService.Create(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, assessment)
}

// Update godoc
// PUT /api/v1/admin/assessments/:id
// Draft-only; author or admin.
func (h *AssessmentHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessmentService.Update(c.Request.Context(), id, &req, claims.UserID, claims.Role == model.RoleAdmin)
	if err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, assessment)
}

// Publish godoc
// POST /api/v1/admin/assessments/:id/publish
// Validates the question set, warms the Redis cache, then flips the
// status. A publish whose cache warm fails stays a draft.
func (h *AssessmentHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.assessmentService.Publish(c.Request.Context(), id, claims.UserID, claims.Role == model.RoleAdmin); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.AssessmentStatusPublished})
}

// Archive godoc
// POST /api/v1/admin/assessments/:id/archive
// Hides the assessment from students and evicts its cache entries.
func (h *AssessmentHandler) Archive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.assessmentService.Archive(c.Request.Context(), id, claims.UserID, claims.Role == model.RoleAdmin); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.AssessmentStatusArchived})
}

// RefreshCache godoc
// POST /api/v1/admin/assessments/:id/refresh-cache
// Rebuilds the cached payload and answer key from the database.
func (h *AssessmentHandler) RefreshCache(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.assessmentService.RefreshCache(c.Request.Context(), id, claims.UserID, claims.Role == model.RoleAdmin); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Delete godoc
// DELETE /api/v1/admin/assessments/:id
// Draft-only.
func (h *AssessmentHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.assessmentService.Delete(c.Request.Context(), id, claims.UserID, claims.Role == model.RoleAdmin); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Results godoc
// GET /api/v1/admin/assessments/:id/results?page=&per_page=
// All attempts for one assessment, newest first.
func (h *AssessmentHandler) Results(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	page, perPage := parsePagination(c)

	attempts, total, err := h.attemptService.ListResults(c.Request.Context(), id, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, attempts, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// GetResult godoc
// GET /api/v1/admin/attempts/:attempt_id
// One attempt with per-question scores and the violation log.
func (h *AssessmentHandler) GetResult(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetResult(c.Request.Context(), attemptID, uuid.Nil, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, attempt)
}

// failAuthoring maps the shared authoring-flow errors onto responses.
func (h *AssessmentHandler) failAuthoring(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotAssessmentAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotAssessmentAuthor)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrAssessmentNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrAssessmentNotDraft)
	case errors.Is(err, service.ErrAssessmentNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrAssessmentNotPublished)
	case strings.Contains(err.Error(), "does not exist"):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
