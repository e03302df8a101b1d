package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType tags the kind of prompt and dictates the shape of both the
// content payload and the submitted answer value.
type QuestionType string

const (
	QuestionTypeSingleChoice  QuestionType = "single-choice"
	QuestionTypeMultiResponse QuestionType = "multi-response"
	QuestionTypeEssay         QuestionType = "essay"
	QuestionTypeOrderedList   QuestionType = "ordered-list"
	QuestionTypeScale         QuestionType = "scale"
	QuestionTypeGrid          QuestionType = "grid"
)

// Question represents a typed prompt. Content carries the type-specific
// payload (choices with correctness, length bounds, row/column definitions,
// correct ordering). Many assessments may reference the same question.
type Question struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Type      QuestionType    `json:"type"`
	Content   json.RawMessage `json:"content"`
	Points    float64         `json:"points"`
	Category  *string         `json:"category,omitempty"`
	Tags      []string        `json:"tags"`
	CreatorID uuid.UUID       `json:"creator_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateQuestionRequest is the payload for creating a question.
type CreateQuestionRequest struct {
	Title    string          `json:"title" binding:"required,min=1,max=500"`
	Type     string          `json:"type" binding:"required,oneof=single-choice multi-response essay ordered-list scale grid"`
	Content  json.RawMessage `json:"content" binding:"required"`
	Points   float64         `json:"points" binding:"min=0"`
	Category string          `json:"category" binding:"omitempty,max=100"`
	Tags     []string        `json:"tags" binding:"omitempty,dive,min=1,max=50"`
}

// UpdateQuestionRequest is the payload for updating a question.
type UpdateQuestionRequest struct {
	Title    string          `json:"title" binding:"omitempty,min=1,max=500"`
	Content  json.RawMessage `json:"content" binding:"omitempty"`
	Points   *float64        `json:"points" binding:"omitempty,min=0"`
	Category *string         `json:"category" binding:"omitempty,max=100"`
	Tags     []string        `json:"tags" binding:"omitempty,dive,min=1,max=50"`
}
