package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the lifecycle states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusArchived  AssessmentStatus = "ARCHIVED"
)

// GradingType selects how submitted attempts are scored.
type GradingType string

const (
	GradingAutomatic GradingType = "automatic"
	GradingManual    GradingType = "manual"
	GradingHybrid    GradingType = "hybrid"
)

// BrowserSecurity holds the client-side lockdown flags. They control which
// integrity signals produce violations; none of them block input.
type BrowserSecurity struct {
	FullScreen      bool `json:"fullScreen"`
	BlockRightClick bool `json:"blockRightClick"`
	BlockTabSwitch  bool `json:"blockTabSwitch"`
}

// Proctoring flags are accepted and stored but no media pipeline exists.
type Proctoring struct {
	Webcam     bool `json:"webcam"`
	Screenshot bool `json:"screenshot"`
}

// AssessmentSettings is the settings bundle embedded in an assessment.
type AssessmentSettings struct {
	ShuffleQuestions bool            `json:"shuffleQuestions"`
	AllowReview      bool            `json:"allowReview"`
	ShowFeedback     bool            `json:"showFeedback"`
	MaxAttempts      int             `json:"maxAttempts"`
	PassingScore     float64         `json:"passingScore"`
	GradingType      GradingType     `json:"gradingType"`
	BrowserSecurity  BrowserSecurity `json:"browserSecurity"`
	Proctoring       Proctoring      `json:"proctoring"`
}

// DefaultSettings returns the settings applied when a create request omits
// the bundle.
func DefaultSettings() AssessmentSettings {
	return AssessmentSettings{
		AllowReview:  true,
		MaxAttempts:  1,
		PassingScore: 70,
		GradingType:  GradingAutomatic,
	}
}

// Assessment is an exam/quiz definition. Immutable during an attempt;
// owned by its creator.
type Assessment struct {
	ID              uuid.UUID            `json:"id"`
	Title           string               `json:"title"`
	Description     *string              `json:"description,omitempty"`
	Category        *string              `json:"category,omitempty"`
	Level           *string              `json:"level,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	Status          AssessmentStatus     `json:"status"`
	Settings        AssessmentSettings   `json:"settings"`
	Tags            []string             `json:"tags"`
	Questions       []AssessmentQuestion `json:"questions,omitempty"`
	CreatorID       uuid.UUID            `json:"creator_id"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// AssessmentQuestion is an ordered question reference inside an assessment.
// Points override the question's own default point value.
type AssessmentQuestion struct {
	QuestionID uuid.UUID `json:"question_id"`
	Order      int       `json:"order"`
	Points     float64   `json:"points"`
	Required   bool      `json:"required"`
}

// TotalPoints sums the point values of all question references.
func (a *Assessment) TotalPoints() float64 {
	var total float64
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// AssessmentPayload is the Redis-cached paper sent to students. Question
// content is sanitized (no correct answers).
type AssessmentPayload struct {
	AssessmentID    uuid.UUID            `json:"assessment_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	AllowReview     bool                 `json:"allow_review"`
	BrowserSecurity BrowserSecurity      `json:"browser_security"`
	Questions       []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question with correct answers stripped.
type QuestionForStudent struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Type     QuestionType    `json:"type"`
	Content  json.RawMessage `json:"content"`
	Points   float64         `json:"points"`
	Order    int             `json:"order"`
	Required bool            `json:"required"`
}

// CreateAssessmentRequest is the payload for creating an assessment.
type CreateAssessmentRequest struct {
	Title           string                    `json:"title" binding:"required,min=3,max=255"`
	Description     string                    `json:"description" binding:"omitempty,max=2000"`
	Category        string                    `json:"category" binding:"omitempty,max=100"`
	Level           string                    `json:"level" binding:"omitempty,max=50"`
	DurationMinutes int                       `json:"duration_minutes" binding:"required,min=1,max=480"`
	Settings        *AssessmentSettings       `json:"settings" binding:"omitempty"`
	Tags            []string                  `json:"tags" binding:"omitempty,dive,min=1,max=50"`
	Questions       []AssessmentQuestionInput `json:"questions" binding:"omitempty,dive"`
}

// AssessmentQuestionInput references a question when creating or updating
// an assessment. Zero points means "use the question's default".
type AssessmentQuestionInput struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Points     float64   `json:"points" binding:"min=0"`
	Required   bool      `json:"required"`
}

// UpdateAssessmentRequest is the payload for updating a draft assessment.
type UpdateAssessmentRequest struct {
	Title           string                    `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string                   `json:"description" binding:"omitempty,max=2000"`
	Category        *string                   `json:"category" binding:"omitempty,max=100"`
	Level           *string                   `json:"level" binding:"omitempty,max=50"`
	DurationMinutes int                       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Settings        *AssessmentSettings       `json:"settings" binding:"omitempty"`
	Tags            []string                  `json:"tags" binding:"omitempty,dive,min=1,max=50"`
	Questions       []AssessmentQuestionInput `json:"questions" binding:"omitempty,dive"`
}
