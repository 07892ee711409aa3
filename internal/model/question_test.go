package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestOptionValid(t *testing.T) {
	valid := []Option{OptionA, OptionB, OptionC}
	for _, o := range valid {
		if !o.Valid() {
			t.Errorf("Option(%q).Valid() = false, want true", o)
		}
	}

	invalid := []Option{"", "D", "a", "AB", " A"}
	for _, o := range invalid {
		if o.Valid() {
			t.Errorf("Option(%q).Valid() = true, want false", o)
		}
	}
}

func TestForCandidateStripsGradingData(t *testing.T) {
	explanation := "because"
	q := Question{
		ID:            uuid.New(),
		ExamID:        uuid.New(),
		QuestionText:  "pick one",
		OptionA:       "first",
		OptionB:       "second",
		OptionC:       "third",
		CorrectOption: OptionB,
		OrderNum:      4,
		Explanation:   &explanation,
	}

	candidate := q.ForCandidate()
	raw, err := json.Marshal(candidate)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	payload := string(raw)
	for _, leak := range []string{"correct_option", "explanation"} {
		if strings.Contains(payload, leak) {
			t.Errorf("candidate payload leaks %q: %s", leak, payload)
		}
	}
	if candidate.OrderNum != 4 || candidate.QuestionText != "pick one" {
		t.Errorf("candidate lost display fields: %+v", candidate)
	}
}
