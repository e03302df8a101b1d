// Package qtype implements type-tag dispatch over question kinds: each
// variant parses its content payload, validates submitted answer values at
// the input boundary, and produces a sanitized student view with correct
// answers stripped. Unknown tags resolve to an explicit unsupported
// variant instead of an error, so one bad question never takes down an
// attempt.
package qtype

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/assessly/assessly-backend/internal/model"
)

// Domain errors surfaced by answer validation.
var (
	ErrUnsupportedType = errors.New("unsupported question type")
	ErrWrongShape      = errors.New("answer value shape does not match question type")
	ErrUnknownChoice   = errors.New("answer references an unknown choice")
	ErrLengthBounds    = errors.New("answer length outside the declared bounds")
	ErrNotPermutation  = errors.New("answer must order every available item exactly once")
)

// Choice is one selectable option, matrix row, or matrix column.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Variant is the shared capability set of all question kinds.
type Variant interface {
	Type() model.QuestionType

	// ValidateAnswer accepts or rejects a submitted value. The zero value
	// (unanswered) is always accepted; rejection never reaches the attempt.
	ValidateAnswer(v model.AnswerValue) error

	// StudentView returns the content payload with correct answers removed.
	StudentView() (json.RawMessage, error)
}

// Parse dispatches on the type tag and decodes the content payload.
// Unknown tags return an Unsupported variant and no error.
func Parse(t model.QuestionType, content json.RawMessage) (Variant, error) {
	switch t {
	case model.QuestionTypeSingleChoice:
		return parseSingleChoice(content)
	case model.QuestionTypeMultiResponse:
		return parseMultiResponse(content)
	case model.QuestionTypeEssay:
		return parseEssay(content)
	case model.QuestionTypeOrderedList:
		return parseOrderedList(content)
	case model.QuestionTypeScale:
		return parseScale(content)
	case model.QuestionTypeGrid:
		return parseGrid(content)
	default:
		return Unsupported{Tag: string(t)}, nil
	}
}

// ─── single-choice ─────────────────────────────────────────────────

// SingleChoice holds one prompt with exactly one correct choice id.
type SingleChoice struct {
	Question      string   `json:"question"`
	Choices       []Choice `json:"choices"`
	CorrectAnswer string   `json:"correctAnswer"`
}

func parseSingleChoice(raw json.RawMessage) (Variant, error) {
	var p SingleChoice
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("single-choice content: %w", err)
	}
	if len(p.Choices) == 0 {
		return nil, errors.New("single-choice content: choices are required")
	}
	return p, nil
}

func (p SingleChoice) Type() model.QuestionType { return model.QuestionTypeSingleChoice }

func (p SingleChoice) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	if v.Kind != model.ValueText {
		return ErrWrongShape
	}
	if !hasChoice(p.Choices, v.Text) {
		return ErrUnknownChoice
	}
	return nil
}

func (p SingleChoice) StudentView() (json.RawMessage, error) {
	return json.Marshal(struct {
		Question string   `json:"question"`
		Choices  []Choice `json:"choices"`
	}{p.Question, p.Choices})
}

// ─── multi-response ────────────────────────────────────────────────

// MultiResponse holds a prompt where any subset of choices may be correct.
type MultiResponse struct {
	Question       string   `json:"question"`
	Choices        []Choice `json:"choices"`
	CorrectAnswers []string `json:"correctAnswers"`
}

func parseMultiResponse(raw json.RawMessage) (Variant, error) {
	var p MultiResponse
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("multi-response content: %w", err)
	}
	if len(p.Choices) == 0 {
		return nil, errors.New("multi-response content: choices are required")
	}
	return p, nil
}

func (p MultiResponse) Type() model.QuestionType { return model.QuestionTypeMultiResponse }

func (p MultiResponse) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	if v.Kind != model.ValueList {
		return ErrWrongShape
	}
	seen := make(map[string]bool, len(v.List))
	for _, id := range v.List {
		if !hasChoice(p.Choices, id) {
			return ErrUnknownChoice
		}
		if seen[id] {
			return fmt.Errorf("duplicate choice %q in answer", id)
		}
		seen[id] = true
	}
	return nil
}

func (p MultiResponse) StudentView() (json.RawMessage, error) {
	return json.Marshal(struct {
		Question string   `json:"question"`
		Choices  []Choice `json:"choices"`
	}{p.Question, p.Choices})
}

// ─── essay ─────────────────────────────────────────────────────────

// Essay holds a free-text prompt with optional length bounds.
// Zero bounds mean unbounded.
type Essay struct {
	Question  string `json:"question"`
	MinLength int    `json:"minLength,omitempty"`
	MaxLength int    `json:"maxLength,omitempty"`
	RichText  bool   `json:"richText,omitempty"`
}

func parseEssay(raw json.RawMessage) (Variant, error) {
	var p Essay
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("essay content: %w", err)
	}
	if p.MaxLength > 0 && p.MinLength > p.MaxLength {
		return nil, errors.New("essay content: minLength exceeds maxLength")
	}
	return p, nil
}

func (p Essay) Type() model.QuestionType { return model.QuestionTypeEssay }

func (p Essay) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	if v.Kind != model.ValueText {
		return ErrWrongShape
	}
	n := len([]rune(v.Text))
	if p.MinLength > 0 && n < p.MinLength {
		return ErrLengthBounds
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return ErrLengthBounds
	}
	return nil
}

func (p Essay) StudentView() (json.RawMessage, error) {
	return json.Marshal(p) // nothing to hide
}

// ─── ordered-list ──────────────────────────────────────────────────

// OrderedList holds a set of items the student must arrange; CorrectOrder
// is the expected full permutation of item ids.
type OrderedList struct {
	Question     string   `json:"question"`
	Choices      []Choice `json:"choices"`
	CorrectOrder []string `json:"correctOrder"`
}

func parseOrderedList(raw json.RawMessage) (Variant, error) {
	var p OrderedList
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("ordered-list content: %w", err)
	}
	if len(p.Choices) == 0 {
		return nil, errors.New("ordered-list content: choices are required")
	}
	return p, nil
}

func (p OrderedList) Type() model.QuestionType { return model.QuestionTypeOrderedList }

func (p OrderedList) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	if v.Kind != model.ValueList {
		return ErrWrongShape
	}
	if len(v.List) != len(p.Choices) {
		return ErrNotPermutation
	}
	seen := make(map[string]bool, len(v.List))
	for _, id := range v.List {
		if !hasChoice(p.Choices, id) || seen[id] {
			return ErrNotPermutation
		}
		seen[id] = true
	}
	return nil
}

func (p OrderedList) StudentView() (json.RawMessage, error) {
	return json.Marshal(struct {
		Question string   `json:"question"`
		Choices  []Choice `json:"choices"`
	}{p.Question, p.Choices})
}

// ─── scale ─────────────────────────────────────────────────────────

// ScalePoints is the fixed ordinal set for likert questions.
var ScalePoints = []Choice{
	{ID: "1", Text: "Strongly Disagree"},
	{ID: "2", Text: "Disagree"},
	{ID: "3", Text: "Neutral"},
	{ID: "4", Text: "Agree"},
	{ID: "5", Text: "Strongly Agree"},
}

// Scale holds a likert statement answered on the fixed 5-point set.
// No correct answer exists; scale questions are never auto-scored.
type Scale struct {
	Question  string `json:"question"`
	Statement string `json:"statement,omitempty"`
}

func parseScale(raw json.RawMessage) (Variant, error) {
	var p Scale
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("scale content: %w", err)
	}
	return p, nil
}

func (p Scale) Type() model.QuestionType { return model.QuestionTypeScale }

func (p Scale) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	if v.Kind != model.ValueText {
		return ErrWrongShape
	}
	if !hasChoice(ScalePoints, v.Text) {
		return ErrUnknownChoice
	}
	return nil
}

func (p Scale) StudentView() (json.RawMessage, error) {
	return json.Marshal(struct {
		Question  string   `json:"question"`
		Statement string   `json:"statement,omitempty"`
		Points    []Choice `json:"points"`
	}{p.Question, p.Statement, ScalePoints})
}

// ─── grid ──────────────────────────────────────────────────────────

// Grid holds a matrix of rows rated against columns, one column per row.
// Partial mappings are legal mid-attempt. No correct answer exists.
type Grid struct {
	Question string   `json:"question"`
	Rows     []Choice `json:"rows"`
	Columns  []Choice `json:"columns"`
}

func parseGrid(raw json.RawMessage) (Variant, error) {
	var p Grid
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("grid content: %w", err)
	}
	if len(p.Rows) == 0 || len(p.Columns) == 0 {
		return nil, errors.New("grid content: rows and columns are required")
	}
	return p, nil
}

func (p Grid) Type() model.QuestionType { return model.QuestionTypeGrid }

func (p Grid) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	if v.Kind != model.ValueGrid {
		return ErrWrongShape
	}
	for row, col := range v.Grid {
		if !hasChoice(p.Rows, row) || !hasChoice(p.Columns, col) {
			return ErrUnknownChoice
		}
	}
	return nil
}

func (p Grid) StudentView() (json.RawMessage, error) {
	return json.Marshal(p)
}

// ─── unsupported ───────────────────────────────────────────────────

// Unsupported is the error variant for unrecognized type tags. It cannot
// be answered, and its student view is a clearly marked error panel.
type Unsupported struct {
	Tag string
}

func (p Unsupported) Type() model.QuestionType { return model.QuestionType(p.Tag) }

func (p Unsupported) ValidateAnswer(v model.AnswerValue) error {
	if v.IsZero() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, p.Tag)
}

func (p Unsupported) StudentView() (json.RawMessage, error) {
	return json.Marshal(struct {
		Error string `json:"error"`
		Type  string `json:"type"`
	}{"unsupported question type", p.Tag})
}

func hasChoice(choices []Choice, id string) bool {
	for _, c := range choices {
		if c.ID == id {
			return true
		}
	}
	return false
}
