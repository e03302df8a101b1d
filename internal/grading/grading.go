// Package grading computes per-question scores and attempt totals using
// type-specific equality. Essay, scale and grid questions are never scored
// automatically: their scores stay nil and their points are excluded from
// the available total.
package grading

import (
	"math"

	"github.com/google/uuid"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/qtype"
)

// Option configures a Grader.
type Option func(*Grader)

// WithPartialCredit enables proportional credit for multi-response
// questions. Off by default: set equality or nothing.
func WithPartialCredit(enabled bool) Option {
	return func(g *Grader) { g.partialCredit = enabled }
}

// Grader scores answers against question content payloads.
type Grader struct {
	partialCredit bool
}

// NewGrader creates a Grader with the given options.
func NewGrader(opts ...Option) *Grader {
	g := &Grader{}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Question is the minimal view needed for scoring: the type tag selects
// the equality rule, Content carries the correct answer, Points the weight.
type Question struct {
	ID      uuid.UUID
	Type    model.QuestionType
	Points  float64
	Content []byte
}

// Result is the outcome of scoring one answer. A nil Score means the
// question is not auto-gradable and contributes nothing to either side of
// the percentage.
type Result struct {
	Score    *float64
	Correct  *bool
	Gradable bool
}

// Summary aggregates an attempt's scoring outcome.
type Summary struct {
	AwardedPoints   float64 `json:"awarded_points"`
	AvailablePoints float64 `json:"available_points"`
	Percentage      float64 `json:"percentage"`
	Passed          bool    `json:"passed"`
}

// ScoreAnswer scores a single submitted value against its question.
func (g *Grader) ScoreAnswer(q Question, v model.AnswerValue) Result {
	points := q.Points
	if points < 0 {
		points = 0
	}

	variant, err := qtype.Parse(q.Type, q.Content)
	if err != nil {
		return Result{}
	}

	switch p := variant.(type) {
	case qtype.SingleChoice:
		if p.CorrectAnswer == "" {
			return Result{}
		}
		return graded(points, !v.IsZero() && v.Kind == model.ValueText && v.Text == p.CorrectAnswer)
	case qtype.MultiResponse:
		return g.scoreMultiResponse(p, v, points)
	case qtype.OrderedList:
		if len(p.CorrectOrder) == 0 {
			return Result{}
		}
		return graded(points, v.Equal(model.ListValue(p.CorrectOrder)))
	default:
		// essay, scale, grid, unsupported: never fabricate a score
		return Result{}
	}
}

func (g *Grader) scoreMultiResponse(p qtype.MultiResponse, v model.AnswerValue, points float64) Result {
	if len(p.CorrectAnswers) == 0 {
		return Result{}
	}
	if v.IsZero() || v.Kind != model.ValueList {
		return graded(points, false)
	}

	correct := make(map[string]bool, len(p.CorrectAnswers))
	for _, id := range p.CorrectAnswers {
		correct[id] = true
	}

	// The submission is a set: duplicates collapse to one selection.
	sorted := v.SortedList()
	hits := 0
	for i, id := range sorted {
		if !correct[id] {
			// any wrong selection forfeits credit, partial or not
			return graded(points, false)
		}
		if i > 0 && id == sorted[i-1] {
			continue
		}
		hits++
	}

	if hits == len(correct) {
		return graded(points, true)
	}
	if g.partialCredit && hits > 0 {
		score := points * float64(hits) / float64(len(correct))
		f := false
		return Result{Score: &score, Correct: &f, Gradable: true}
	}
	return graded(points, false)
}

// ScoreAttempt scores every answer in place (matching by question id) and
// returns the attempt summary. Zero available points yields percentage 0.
func (g *Grader) ScoreAttempt(questions []Question, answers []model.AttemptAnswer, passingScore float64) ([]model.AttemptAnswer, Summary) {
	byQuestion := make(map[uuid.UUID]Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}

	var awarded, available float64
	out := make([]model.AttemptAnswer, len(answers))
	copy(out, answers)

	for i := range out {
		q, ok := byQuestion[out[i].QuestionID]
		if !ok {
			continue
		}
		res := g.ScoreAnswer(q, out[i].Value)
		if !res.Gradable {
			out[i].Score = nil
			continue
		}
		out[i].Score = res.Score
		available += q.Points
		if res.Score != nil {
			awarded += *res.Score
		}
	}

	summary := Summary{AwardedPoints: awarded, AvailablePoints: available}
	if available > 0 {
		summary.Percentage = math.Round(awarded / available * 100)
	}
	summary.Passed = summary.Percentage >= passingScore
	return out, summary
}

func graded(points float64, correct bool) Result {
	score := 0.0
	if correct {
		score = points
	}
	c := correct
	return Result{Score: &score, Correct: &c, Gradable: true}
}
