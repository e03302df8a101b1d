package qtype

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/assessly/assessly-backend/internal/model"
)

const singleChoiceContent = `{
	"question": "What is 2+2?",
	"choices": [{"id": "a", "text": "3"}, {"id": "b", "text": "4"}],
	"correctAnswer": "b"
}`

const multiResponseContent = `{
	"question": "Select the even numbers",
	"choices": [{"id": "a", "text": "1"}, {"id": "b", "text": "2"}, {"id": "c", "text": "4"}],
	"correctAnswers": ["b", "c"]
}`

const orderedListContent = `{
	"question": "Order the steps",
	"choices": [{"id": "x", "text": "first"}, {"id": "y", "text": "second"}, {"id": "z", "text": "third"}],
	"correctOrder": ["x", "y", "z"]
}`

const gridContent = `{
	"question": "Match",
	"rows": [{"id": "r1", "text": "Go"}, {"id": "r2", "text": "Postgres"}],
	"columns": [{"id": "c1", "text": "language"}, {"id": "c2", "text": "database"}]
}`

func mustParse(t *testing.T, qt model.QuestionType, content string) Variant {
	t.Helper()
	v, err := Parse(qt, json.RawMessage(content))
	if err != nil {
		t.Fatalf("Parse(%s): %v", qt, err)
	}
	return v
}

func TestParseDispatch(t *testing.T) {
	tests := []struct {
		qt      model.QuestionType
		content string
	}{
		{model.QuestionTypeSingleChoice, singleChoiceContent},
		{model.QuestionTypeMultiResponse, multiResponseContent},
		{model.QuestionTypeEssay, `{"question": "Discuss", "minLength": 10}`},
		{model.QuestionTypeOrderedList, orderedListContent},
		{model.QuestionTypeScale, `{"question": "Rate", "statement": "Go is fun"}`},
		{model.QuestionTypeGrid, gridContent},
	}
	for _, tt := range tests {
		t.Run(string(tt.qt), func(t *testing.T) {
			v := mustParse(t, tt.qt, tt.content)
			if v.Type() != tt.qt {
				t.Errorf("Type() = %s, want %s", v.Type(), tt.qt)
			}
		})
	}
}

func TestParseUnknownTagDegrades(t *testing.T) {
	v, err := Parse("hotspot", json.RawMessage(`{"anything": true}`))
	if err != nil {
		t.Fatalf("unknown tag must not error: %v", err)
	}
	u, ok := v.(Unsupported)
	if !ok {
		t.Fatalf("got %T, want Unsupported", v)
	}
	if u.Tag != "hotspot" {
		t.Errorf("Tag = %q, want hotspot", u.Tag)
	}
}

func TestParseRejectsMalformedContent(t *testing.T) {
	tests := []struct {
		name    string
		qt      model.QuestionType
		content string
	}{
		{"single-choice without choices", model.QuestionTypeSingleChoice, `{"question": "q", "correctAnswer": "a"}`},
		{"multi-response without choices", model.QuestionTypeMultiResponse, `{"question": "q"}`},
		{"ordered-list without choices", model.QuestionTypeOrderedList, `{"question": "q"}`},
		{"essay with inverted bounds", model.QuestionTypeEssay, `{"question": "q", "minLength": 100, "maxLength": 10}`},
		{"grid without columns", model.QuestionTypeGrid, `{"question": "q", "rows": [{"id": "r", "text": "r"}]}`},
		{"broken json", model.QuestionTypeSingleChoice, `{"question": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.qt, json.RawMessage(tt.content)); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}

func TestValidateAnswerAcceptsUnanswered(t *testing.T) {
	variants := []Variant{
		mustParse(t, model.QuestionTypeSingleChoice, singleChoiceContent),
		mustParse(t, model.QuestionTypeMultiResponse, multiResponseContent),
		mustParse(t, model.QuestionTypeEssay, `{"question": "q", "minLength": 50}`),
		mustParse(t, model.QuestionTypeOrderedList, orderedListContent),
		mustParse(t, model.QuestionTypeScale, `{"question": "q"}`),
		mustParse(t, model.QuestionTypeGrid, gridContent),
		Unsupported{Tag: "hotspot"},
	}
	for _, v := range variants {
		if err := v.ValidateAnswer(model.AnswerValue{}); err != nil {
			t.Errorf("%s: zero value rejected: %v", v.Type(), err)
		}
	}
}

func TestSingleChoiceValidateAnswer(t *testing.T) {
	v := mustParse(t, model.QuestionTypeSingleChoice, singleChoiceContent)

	if err := v.ValidateAnswer(model.TextValue("a")); err != nil {
		t.Errorf("known choice rejected: %v", err)
	}
	if err := v.ValidateAnswer(model.TextValue("nope")); !errors.Is(err, ErrUnknownChoice) {
		t.Errorf("err = %v, want ErrUnknownChoice", err)
	}
	if err := v.ValidateAnswer(model.ListValue([]string{"a"})); !errors.Is(err, ErrWrongShape) {
		t.Errorf("err = %v, want ErrWrongShape", err)
	}
}

func TestMultiResponseValidateAnswer(t *testing.T) {
	v := mustParse(t, model.QuestionTypeMultiResponse, multiResponseContent)

	if err := v.ValidateAnswer(model.ListValue([]string{"a", "b"})); err != nil {
		t.Errorf("valid subset rejected: %v", err)
	}
	if err := v.ValidateAnswer(model.ListValue([]string{"a", "zz"})); !errors.Is(err, ErrUnknownChoice) {
		t.Errorf("err = %v, want ErrUnknownChoice", err)
	}
	if err := v.ValidateAnswer(model.ListValue([]string{"a", "a"})); err == nil {
		t.Error("duplicate selection must be rejected")
	}
	if err := v.ValidateAnswer(model.TextValue("a")); !errors.Is(err, ErrWrongShape) {
		t.Errorf("err = %v, want ErrWrongShape", err)
	}
}

func TestEssayValidateAnswer(t *testing.T) {
	v := mustParse(t, model.QuestionTypeEssay, `{"question": "q", "minLength": 5, "maxLength": 10}`)

	if err := v.ValidateAnswer(model.TextValue("hello!")); err != nil {
		t.Errorf("in-bounds answer rejected: %v", err)
	}
	if err := v.ValidateAnswer(model.TextValue("hey")); !errors.Is(err, ErrLengthBounds) {
		t.Errorf("err = %v, want ErrLengthBounds", err)
	}
	if err := v.ValidateAnswer(model.TextValue("way too long an answer")); !errors.Is(err, ErrLengthBounds) {
		t.Errorf("err = %v, want ErrLengthBounds", err)
	}
	// bounds count runes, not bytes
	if err := v.ValidateAnswer(model.TextValue("héllo")); err != nil {
		t.Errorf("5-rune answer rejected: %v", err)
	}
}

func TestOrderedListValidateAnswer(t *testing.T) {
	v := mustParse(t, model.QuestionTypeOrderedList, orderedListContent)

	if err := v.ValidateAnswer(model.ListValue([]string{"z", "x", "y"})); err != nil {
		t.Errorf("full permutation rejected: %v", err)
	}
	if err := v.ValidateAnswer(model.ListValue([]string{"x", "y"})); !errors.Is(err, ErrNotPermutation) {
		t.Errorf("partial list: err = %v, want ErrNotPermutation", err)
	}
	if err := v.ValidateAnswer(model.ListValue([]string{"x", "x", "y"})); !errors.Is(err, ErrNotPermutation) {
		t.Errorf("duplicate item: err = %v, want ErrNotPermutation", err)
	}
	if err := v.ValidateAnswer(model.ListValue([]string{"x", "y", "q"})); !errors.Is(err, ErrNotPermutation) {
		t.Errorf("unknown item: err = %v, want ErrNotPermutation", err)
	}
}

func TestScaleValidateAnswer(t *testing.T) {
	v := mustParse(t, model.QuestionTypeScale, `{"question": "q"}`)

	for _, p := range ScalePoints {
		if err := v.ValidateAnswer(model.TextValue(p.ID)); err != nil {
			t.Errorf("point %s rejected: %v", p.ID, err)
		}
	}
	if err := v.ValidateAnswer(model.TextValue("6")); !errors.Is(err, ErrUnknownChoice) {
		t.Errorf("err = %v, want ErrUnknownChoice", err)
	}
}

func TestGridValidateAnswer(t *testing.T) {
	v := mustParse(t, model.QuestionTypeGrid, gridContent)

	// partial mappings are legal mid-attempt
	if err := v.ValidateAnswer(model.GridValue(map[string]string{"r1": "c1"})); err != nil {
		t.Errorf("partial mapping rejected: %v", err)
	}
	if err := v.ValidateAnswer(model.GridValue(map[string]string{"r9": "c1"})); !errors.Is(err, ErrUnknownChoice) {
		t.Errorf("unknown row: err = %v, want ErrUnknownChoice", err)
	}
	if err := v.ValidateAnswer(model.GridValue(map[string]string{"r1": "c9"})); !errors.Is(err, ErrUnknownChoice) {
		t.Errorf("unknown column: err = %v, want ErrUnknownChoice", err)
	}
	if err := v.ValidateAnswer(model.TextValue("r1")); !errors.Is(err, ErrWrongShape) {
		t.Errorf("err = %v, want ErrWrongShape", err)
	}
}

func TestUnsupportedValidateAnswer(t *testing.T) {
	v := Unsupported{Tag: "hotspot"}
	if err := v.ValidateAnswer(model.TextValue("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestStudentViewStripsAnswerKeys(t *testing.T) {
	tests := []struct {
		name    string
		qt      model.QuestionType
		content string
		secret  string
	}{
		{"single-choice", model.QuestionTypeSingleChoice, singleChoiceContent, "correctAnswer"},
		{"multi-response", model.QuestionTypeMultiResponse, multiResponseContent, "correctAnswers"},
		{"ordered-list", model.QuestionTypeOrderedList, orderedListContent, "correctOrder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := mustParse(t, tt.qt, tt.content).StudentView()
			if err != nil {
				t.Fatalf("StudentView: %v", err)
			}
			if strings.Contains(string(view), tt.secret) {
				t.Errorf("student view leaks %q: %s", tt.secret, view)
			}
			if !strings.Contains(string(view), "choices") {
				t.Errorf("student view missing choices: %s", view)
			}
		})
	}
}

func TestScaleStudentViewIncludesPoints(t *testing.T) {
	view, err := mustParse(t, model.QuestionTypeScale, `{"question": "q", "statement": "s"}`).StudentView()
	if err != nil {
		t.Fatalf("StudentView: %v", err)
	}
	if !strings.Contains(string(view), "Strongly Agree") {
		t.Errorf("scale view missing the fixed point set: %s", view)
	}
}

func TestUnsupportedStudentView(t *testing.T) {
	view, err := Unsupported{Tag: "hotspot"}.StudentView()
	if err != nil {
		t.Fatalf("StudentView: %v", err)
	}
	var panel struct {
		Error string `json:"error"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(view, &panel); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if panel.Type != "hotspot" || panel.Error == "" {
		t.Errorf("panel = %+v", panel)
	}
}
