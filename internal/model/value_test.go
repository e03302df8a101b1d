package model

import (
	"encoding/json"
	"testing"
)

func TestAnswerValueUnmarshalShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want AnswerValue
	}{
		{"string", `"b"`, TextValue("b")},
		{"array", `["a", "b"]`, ListValue([]string{"a", "b"})},
		{"object", `{"r1": "c1"}`, GridValue(map[string]string{"r1": "c1"})},
		{"empty string", `""`, AnswerValue{}},
		{"empty array", `[]`, AnswerValue{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v AnswerValue
			if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !v.Equal(tt.want) {
				t.Errorf("got %+v, want %+v", v, tt.want)
			}
		})
	}
}

func TestAnswerValueUnmarshalRejectsOtherShapes(t *testing.T) {
	for _, in := range []string{`42`, `true`, `[1, 2]`, `{"a": 1}`} {
		var v AnswerValue
		if err := json.Unmarshal([]byte(in), &v); err == nil {
			t.Errorf("%s: expected an error", in)
		}
	}
}

func TestAnswerValueRoundTrip(t *testing.T) {
	for _, v := range []AnswerValue{
		TextValue("b"),
		ListValue([]string{"x", "y"}),
		GridValue(map[string]string{"r": "c"}),
		{},
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back AnswerValue
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !back.Equal(v) {
			t.Errorf("round trip changed %+v to %+v", v, back)
		}
	}
}

func TestAnswerValueEqual(t *testing.T) {
	if !ListValue([]string{"a", "b"}).Equal(ListValue([]string{"a", "b"})) {
		t.Error("identical lists must be equal")
	}
	// list comparison is order-sensitive; set semantics live in the scorer
	if ListValue([]string{"a", "b"}).Equal(ListValue([]string{"b", "a"})) {
		t.Error("reordered lists must not be equal")
	}
	if TextValue("a").Equal(ListValue([]string{"a"})) {
		t.Error("kind mismatch must not be equal")
	}
	if !(AnswerValue{}).Equal(TextValue("")) {
		t.Error("both unanswered shapes must be equal")
	}
}
