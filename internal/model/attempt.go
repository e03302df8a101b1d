package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. Completed, abandoned and
// timed-out are terminal: the attempt is immutable once reached.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
	AttemptStatusTimedOut   AttemptStatus = "TIMED_OUT"
)

// Terminal reports whether no further mutation is permitted.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusAbandoned || s == AttemptStatusTimedOut
}

// ViolationType tags an integrity event.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab-switch"
	ViolationRightClick     ViolationType = "right-click"
	ViolationFullscreenExit ViolationType = "fullscreen-exit"
)

// Violation is one logged integrity event. Append-only while the attempt
// is in progress.
type Violation struct {
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Details   string        `json:"details,omitempty"`
}

// AttemptAnswer is the per-question answer record. Score stays nil until
// graded; essay answers under automatic grading remain nil permanently.
type AttemptAnswer struct {
	QuestionID       uuid.UUID   `json:"question_id"`
	Value            AnswerValue `json:"value"`
	Score            *float64    `json:"score,omitempty"`
	Feedback         *string     `json:"feedback,omitempty"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
}

// Attempt is one student's run through an assessment.
type Attempt struct {
	ID               uuid.UUID       `json:"id"`
	AssessmentID     uuid.UUID       `json:"assessment_id"`
	UserID           uuid.UUID       `json:"user_id"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Status           AttemptStatus   `json:"status"`
	Answers          []AttemptAnswer `json:"answers"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	Score            *float64        `json:"score,omitempty"`
	Passed           *bool           `json:"passed,omitempty"`
	IPAddress        string          `json:"ip_address,omitempty"`
	UserAgent        string          `json:"user_agent,omitempty"`
	Violations       []Violation     `json:"violations"`
}

// StartAttemptRequest is the payload for beginning an attempt.
type StartAttemptRequest struct {
	UserAgent string `json:"user_agent" binding:"omitempty,max=512"`
}

// AttemptState is the reload view of an in-progress attempt: autosaved
// answers plus server-computed remaining time.
type AttemptState struct {
	AssessmentID     uuid.UUID              `json:"assessment_id"`
	AttemptID        uuid.UUID              `json:"attempt_id"`
	AutosavedAnswers map[string]AnswerValue `json:"autosaved_answers"`
	RemainingSeconds float64                `json:"remaining_seconds"`
}
