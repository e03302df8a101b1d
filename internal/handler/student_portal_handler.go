package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/assessly/assessly-backend/internal/service"
	"github.com/assessly/assessly-backend/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (lobby, attempt
// lifecycle, autosave, results).
type StudentPortalHandler struct {
	attemptService *service.AttemptService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(attemptService *service.AttemptService) *StudentPortalHandler {
	return &StudentPortalHandler{attemptService: attemptService}
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Published assessments with the student's own attempt status overlaid.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.attemptService.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if lobby == nil {
		lobby = []service.LobbyAssessment{}
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": lobby})
}

// StartAttempt godoc
// POST /api/v1/student/assessments/:assessment_id/start
// Begins an attempt (idempotent: an in-progress attempt is returned as-is).
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "assessment_id")
	if !ok {
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), assessmentID, claims.UserID, c.ClientIP(), userAgent)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssessmentNotAvailable):
			response.Fail(c, http.StatusBadRequest, response.ErrAssessmentNotAvailable)
		case errors.Is(err, service.ErrMaxAttemptsReached):
			response.Fail(c, http.StatusConflict, response.ErrMaxAttemptsReached)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetPaper godoc
// GET /api/v1/student/assessments/:assessment_id/paper
// Returns the sanitized payload from Redis (bypasses PostgreSQL).
// SECURITY: Requires an active attempt for this assessment, so students
// cannot download papers they have not started.
func (h *StudentPortalHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "assessment_id")
	if !ok {
		return
	}

	payload, err := h.attemptService.GetPaper(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrAssessmentNotPublished)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetState godoc
// GET /api/v1/student/assessments/:assessment_id/state
// Reload view: autosaved answers plus server-computed remaining time.
func (h *StudentPortalHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "assessment_id")
	if !ok {
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// saveAnswerRequest carries one autosaved answer. Value keeps its natural
// JSON shape (string, string array, or row→column object).
type saveAnswerRequest struct {
	QuestionID string          `json:"question_id" binding:"required,uuid"`
	Value      json.RawMessage `json:"value" binding:"required"`
}

// SaveAnswer godoc
// POST /api/v1/student/assessments/:assessment_id/answer
// Validates the value shape against the question type and autosaves it.
// A rejected value leaves the previous autosave untouched.
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "assessment_id")
	if !ok {
		return
	}

	var req saveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var value model.AnswerValue
	if err := json.Unmarshal(req.Value, &value); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), assessmentID, claims.UserID, questionID, value); err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// violationRequest reports one integrity event from the client.
type violationRequest struct {
	Type    string `json:"type" binding:"required,oneof=tab-switch right-click fullscreen-exit"`
	Details string `json:"details" binding:"omitempty,max=500"`
}

// RecordViolation godoc
// POST /api/v1/student/assessments/:assessment_id/violation
// Logs the event when the assessment's security settings call for it.
// Recording never blocks the attempt.
func (h *StudentPortalHandler) RecordViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "assessment_id")
	if !ok {
		return
	}

	var req violationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	recorded, err := h.attemptService.RecordViolation(
		c.Request.Context(), assessmentID, claims.UserID, model.ViolationType(req.Type), req.Details)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"recorded": recorded})
}

// SubmitAttempt godoc
// POST /api/v1/student/assessments/:assessment_id/submit
// Grades the autosaved answers and returns the summary immediately;
// persistence happens asynchronously.
func (h *StudentPortalHandler) SubmitAttempt(c *gin.Context) {
	h.finishAttempt(c, model.AttemptStatusCompleted)
}

// AbandonAttempt godoc
// POST /api/v1/student/assessments/:assessment_id/abandon
// Closes the attempt without the student finishing it. The attempt is
// still graded so partial work is never lost.
func (h *StudentPortalHandler) AbandonAttempt(c *gin.Context) {
	h.finishAttempt(c, model.AttemptStatusAbandoned)
}

func (h *StudentPortalHandler) finishAttempt(c *gin.Context, status model.AttemptStatus) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "assessment_id")
	if !ok {
		return
	}

	attempt, summary, err := h.attemptService.Finish(c.Request.Context(), assessmentID, claims.UserID, status)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attempt,
		"summary": summary,
	})
}

// GetHistory godoc
// GET /api/v1/student/history?page=&per_page=
// The student's own finished and in-progress attempts, newest first.
func (h *StudentPortalHandler) GetHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := parsePagination(c)

	attempts, total, err := h.attemptService.ListHistory(c.Request.Context(), claims.UserID, page, perPage)
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
// GET /api/v1/student/results/:attempt_id
// One finished attempt with per-question scores and the violation log.
// Students can only read their own results.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetResult(c.Request.Context(), attemptID, claims.UserID, true)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) || errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, attempt)
}
