package grading

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/assessly/assessly-backend/internal/model"
)

func question(t *testing.T, qt model.QuestionType, points float64, content any) Question {
	t.Helper()
	raw, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	return Question{ID: uuid.New(), Type: qt, Points: points, Content: raw}
}

func singleChoice(t *testing.T, points float64) Question {
	return question(t, model.QuestionTypeSingleChoice, points, map[string]any{
		"question":      "What is 2+2?",
		"choices":       []map[string]string{{"id": "a", "text": "3"}, {"id": "b", "text": "4"}},
		"correctAnswer": "b",
	})
}

func multiResponse(t *testing.T, points float64) Question {
	return question(t, model.QuestionTypeMultiResponse, points, map[string]any{
		"question": "Select the even numbers",
		"choices": []map[string]string{
			{"id": "a", "text": "1"}, {"id": "b", "text": "2"},
			{"id": "c", "text": "3"}, {"id": "d", "text": "4"},
		},
		"correctAnswers": []string{"b", "d"},
	})
}

func TestScoreAnswerSingleChoice(t *testing.T) {
	g := NewGrader()
	q := singleChoice(t, 10)

	tests := []struct {
		name    string
		value   model.AnswerValue
		score   float64
		correct bool
	}{
		{"correct", model.TextValue("b"), 10, true},
		{"incorrect", model.TextValue("a"), 0, false},
		{"unanswered", model.AnswerValue{}, 0, false},
		{"wrong shape", model.ListValue([]string{"b"}), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.ScoreAnswer(q, tt.value)
			if !res.Gradable {
				t.Fatal("expected a gradable result")
			}
			if *res.Score != tt.score {
				t.Errorf("score = %v, want %v", *res.Score, tt.score)
			}
			if *res.Correct != tt.correct {
				t.Errorf("correct = %v, want %v", *res.Correct, tt.correct)
			}
		})
	}
}

func TestScoreAnswerSingleChoiceNoKey(t *testing.T) {
	g := NewGrader()
	q := question(t, model.QuestionTypeSingleChoice, 10, map[string]any{
		"question": "opinion poll",
		"choices":  []map[string]string{{"id": "a", "text": "yes"}},
	})
	if res := g.ScoreAnswer(q, model.TextValue("a")); res.Gradable {
		t.Error("question without a correct answer must not be gradable")
	}
}

func TestScoreAnswerMultiResponse(t *testing.T) {
	q := multiResponse(t, 8)

	tests := []struct {
		name    string
		partial bool
		value   model.AnswerValue
		score   float64
		correct bool
	}{
		{"exact set", false, model.ListValue([]string{"b", "d"}), 8, true},
		{"exact set reordered", false, model.ListValue([]string{"d", "b"}), 8, true},
		{"subset without partial credit", false, model.ListValue([]string{"b"}), 0, false},
		{"subset with partial credit", true, model.ListValue([]string{"b"}), 4, false},
		{"wrong pick forfeits even with partial credit", true, model.ListValue([]string{"b", "c"}), 0, false},
		{"duplicated id is one selection", false, model.ListValue([]string{"b", "b"}), 0, false},
		{"duplicated id is one selection with partial credit", true, model.ListValue([]string{"b", "b"}), 4, false},
		{"duplicated id inside the exact set", true, model.ListValue([]string{"b", "b", "d"}), 8, true},
		{"unanswered", true, model.AnswerValue{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrader(WithPartialCredit(tt.partial))
			res := g.ScoreAnswer(q, tt.value)
			if !res.Gradable {
				t.Fatal("expected a gradable result")
			}
			if *res.Score != tt.score {
				t.Errorf("score = %v, want %v", *res.Score, tt.score)
			}
			if *res.Correct != tt.correct {
				t.Errorf("correct = %v, want %v", *res.Correct, tt.correct)
			}
		})
	}
}

func TestScoreAnswerOrderedList(t *testing.T) {
	g := NewGrader()
	q := question(t, model.QuestionTypeOrderedList, 5, map[string]any{
		"question": "order the steps",
		"choices": []map[string]string{
			{"id": "x", "text": "first"}, {"id": "y", "text": "second"}, {"id": "z", "text": "third"},
		},
		"correctOrder": []string{"x", "y", "z"},
	})

	if res := g.ScoreAnswer(q, model.ListValue([]string{"x", "y", "z"})); *res.Score != 5 {
		t.Errorf("exact order score = %v, want 5", *res.Score)
	}
	if res := g.ScoreAnswer(q, model.ListValue([]string{"z", "y", "x"})); *res.Score != 0 {
		t.Errorf("wrong order score = %v, want 0", *res.Score)
	}
}

func TestScoreAnswerManualTypes(t *testing.T) {
	g := NewGrader()
	tests := []struct {
		name  string
		q     Question
		value model.AnswerValue
	}{
		{"essay", question(t, model.QuestionTypeEssay, 20, map[string]any{"question": "discuss"}), model.TextValue("a long answer")},
		{"scale", question(t, model.QuestionTypeScale, 5, map[string]any{"question": "rate"}), model.TextValue("4")},
		{"grid", question(t, model.QuestionTypeGrid, 5, map[string]any{
			"question": "match",
			"rows":     []map[string]string{{"id": "r1", "text": "row"}},
			"columns":  []map[string]string{{"id": "c1", "text": "col"}},
		}), model.GridValue(map[string]string{"r1": "c1"})},
		{"unknown type", Question{Type: "hotspot", Points: 5, Content: []byte(`{}`)}, model.TextValue("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.ScoreAnswer(tt.q, tt.value)
			if res.Gradable {
				t.Error("must not be gradable")
			}
			if res.Score != nil {
				t.Errorf("score = %v, want nil", *res.Score)
			}
		})
	}
}

func TestScoreAttempt(t *testing.T) {
	g := NewGrader()
	sc := singleChoice(t, 10)
	mr := multiResponse(t, 10)
	essay := question(t, model.QuestionTypeEssay, 50, map[string]any{"question": "discuss"})
	questions := []Question{sc, mr, essay}

	answers := []model.AttemptAnswer{
		{QuestionID: sc.ID, Value: model.TextValue("b")},
		{QuestionID: mr.ID, Value: model.ListValue([]string{"b"})},
		{QuestionID: essay.ID, Value: model.TextValue("an essay")},
	}

	graded, summary := g.ScoreAttempt(questions, answers, 50)

	if summary.AwardedPoints != 10 {
		t.Errorf("awarded = %v, want 10", summary.AwardedPoints)
	}
	// essay points excluded from both sides
	if summary.AvailablePoints != 20 {
		t.Errorf("available = %v, want 20", summary.AvailablePoints)
	}
	if summary.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", summary.Percentage)
	}
	if !summary.Passed {
		t.Error("50%% against a passing score of 50 must pass")
	}

	if graded[0].Score == nil || *graded[0].Score != 10 {
		t.Error("single-choice answer not scored in place")
	}
	if graded[2].Score != nil {
		t.Error("essay answer must keep a nil score")
	}
}

func TestScoreAttemptPercentageRounds(t *testing.T) {
	g := NewGrader()
	q1 := singleChoice(t, 1)
	q2 := singleChoice(t, 1)
	q3 := singleChoice(t, 1)

	answers := []model.AttemptAnswer{
		{QuestionID: q1.ID, Value: model.TextValue("b")},
		{QuestionID: q2.ID, Value: model.TextValue("b")},
		{QuestionID: q3.ID, Value: model.TextValue("a")},
	}
	_, summary := g.ScoreAttempt([]Question{q1, q2, q3}, answers, 70)
	// 2/3 rounds to 67
	if summary.Percentage != 67 {
		t.Errorf("percentage = %v, want 67", summary.Percentage)
	}
	if summary.Passed {
		t.Error("67 against a passing score of 70 must not pass")
	}
}

func TestScoreAttemptNoGradableQuestions(t *testing.T) {
	g := NewGrader()
	essay := question(t, model.QuestionTypeEssay, 100, map[string]any{"question": "discuss"})
	answers := []model.AttemptAnswer{{QuestionID: essay.ID, Value: model.TextValue("text")}}

	_, summary := g.ScoreAttempt([]Question{essay}, answers, 70)
	if summary.Percentage != 0 {
		t.Errorf("percentage = %v, want 0", summary.Percentage)
	}
	if summary.Passed {
		t.Error("zero available points must not pass")
	}
}

func TestScoreAttemptSkipsUnknownQuestionIDs(t *testing.T) {
	g := NewGrader()
	q := singleChoice(t, 10)
	answers := []model.AttemptAnswer{
		{QuestionID: uuid.New(), Value: model.TextValue("b")},
		{QuestionID: q.ID, Value: model.TextValue("b")},
	}
	_, summary := g.ScoreAttempt([]Question{q}, answers, 70)
	if summary.AvailablePoints != 10 || summary.AwardedPoints != 10 {
		t.Errorf("summary = %+v, want 10/10", summary)
	}
}

func TestScoreAnswerNegativePointsClampToZero(t *testing.T) {
	g := NewGrader()
	q := singleChoice(t, -5)
	res := g.ScoreAnswer(q, model.TextValue("b"))
	if *res.Score != 0 {
		t.Errorf("score = %v, want 0", *res.Score)
	}
}
