package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the shape of a submitted answer value.
type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueText            // single-choice, essay, scale
	ValueList            // multi-response, ordered-list
	ValueGrid            // grid: row id → column id
)

// AnswerValue is the submitted value for one question. Exactly one of the
// shape fields is populated, according to Kind. The zero value is the
// unanswered state and serializes as "".
type AnswerValue struct {
	Kind ValueKind
	Text string
	List []string
	Grid map[string]string
}

// TextValue builds a single-string answer.
func TextValue(s string) AnswerValue {
	if s == "" {
		return AnswerValue{}
	}
	return AnswerValue{Kind: ValueText, Text: s}
}

// ListValue builds a string-list answer.
func ListValue(items []string) AnswerValue {
	if len(items) == 0 {
		return AnswerValue{}
	}
	return AnswerValue{Kind: ValueList, List: items}
}

// GridValue builds a row→column mapping answer.
func GridValue(m map[string]string) AnswerValue {
	if len(m) == 0 {
		return AnswerValue{}
	}
	return AnswerValue{Kind: ValueGrid, Grid: m}
}

// IsZero reports whether the value is the unanswered state.
func (v AnswerValue) IsZero() bool {
	switch v.Kind {
	case ValueText:
		return v.Text == ""
	case ValueList:
		return len(v.List) == 0
	case ValueGrid:
		return len(v.Grid) == 0
	default:
		return true
	}
}

// MarshalJSON encodes the value in its natural JSON shape: a string, an
// array of strings, or an object. Unanswered encodes as "".
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueList:
		return json.Marshal(v.List)
	case ValueGrid:
		return json.Marshal(v.Grid)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON accepts a JSON string, array of strings, or string-keyed
// object and tags the value with the matching kind.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextValue(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListValue(list)
		return nil
	}
	var grid map[string]string
	if err := json.Unmarshal(data, &grid); err == nil {
		*v = GridValue(grid)
		return nil
	}
	return fmt.Errorf("answer value must be a string, string array, or string map")
}

// Equal compares two values structurally. List comparison is
// order-sensitive; set semantics are the scorer's concern.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.IsZero() && o.IsZero() {
		return true
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueText:
		return v.Text == o.Text
	case ValueList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	case ValueGrid:
		if len(v.Grid) != len(o.Grid) {
			return false
		}
		for k, val := range v.Grid {
			if o.Grid[k] != val {
				return false
			}
		}
		return true
	}
	return true
}

// SortedList returns a sorted copy of the list shape, for set comparison.
func (v AnswerValue) SortedList() []string {
	out := make([]string, len(v.List))
	copy(out, v.List)
	sort.Strings(out)
	return out
}
