package service

import (
	"testing"

	"github.com/google/uuid"

	"github.com/assessly/assessly-backend/internal/model"
)

func paperQuestions(n int) []model.QuestionForStudent {
	out := make([]model.QuestionForStudent, n)
	for i := range out {
		out[i] = model.QuestionForStudent{ID: uuid.New(), Order: i}
	}
	return out
}

func sameOrder(a, b []model.QuestionForStudent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func TestOrderQuestionsKeepsAuthoredOrderWithoutShuffle(t *testing.T) {
	questions := paperQuestions(6)
	got := orderQuestions(questions, false, uuid.New())
	if !sameOrder(got, questions) {
		t.Error("authored order changed with shuffle disabled")
	}
}

func TestOrderQuestionsShuffleIsStablePerAttempt(t *testing.T) {
	questions := paperQuestions(8)
	attemptID := uuid.New()

	first := orderQuestions(questions, true, attemptID)
	second := orderQuestions(questions, true, attemptID)
	if !sameOrder(first, second) {
		t.Fatal("same attempt saw two different orders")
	}

	// No question gained or lost.
	seen := make(map[uuid.UUID]bool, len(first))
	for _, q := range first {
		seen[q.ID] = true
	}
	for _, q := range questions {
		if !seen[q.ID] {
			t.Fatalf("question %s missing from shuffled paper", q.ID)
		}
	}
}

func TestOrderQuestionsShufflesAcrossAttempts(t *testing.T) {
	questions := paperQuestions(8)

	// Distinct attempts should not all land on the authored order.
	moved := false
	for i := 0; i < 20 && !moved; i++ {
		if !sameOrder(orderQuestions(questions, true, uuid.New()), questions) {
			moved = true
		}
	}
	if !moved {
		t.Error("twenty attempts all kept the authored order")
	}
}

func TestOrderQuestionsDoesNotMutateInput(t *testing.T) {
	questions := paperQuestions(8)
	original := make([]model.QuestionForStudent, len(questions))
	copy(original, questions)

	orderQuestions(questions, true, uuid.New())
	if !sameOrder(questions, original) {
		t.Error("input slice was reordered in place")
	}
}
