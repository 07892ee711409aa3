package model

import (
	"github.com/google/uuid"
)

// Option is one of the three answer labels of a multiple-choice question.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
)

// Valid reports whether o is one of the declared option labels.
func (o Option) Valid() bool {
	return o == OptionA || o == OptionB || o == OptionC
}

// Question represents a single exam question with three options.
// Immutable once loaded into a session.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	CorrectOption Option    `json:"correct_option"`
	OrderNum      int       `json:"order_num"`
	// Either one combined explanation or one per option; all optional.
	Explanation  *string `json:"explanation,omitempty"`
	ExplanationA *string `json:"explanation_a,omitempty"`
	ExplanationB *string `json:"explanation_b,omitempty"`
	ExplanationC *string `json:"explanation_c,omitempty"`
}

// QuestionForCandidate is a question stripped of the correct answer and
// explanations, sent to the exam-taking UI.
type QuestionForCandidate struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	OptionA      string    `json:"option_a"`
	OptionB      string    `json:"option_b"`
	OptionC      string    `json:"option_c"`
	OrderNum     int       `json:"order_num"`
}

// ForCandidate strips grading data from a question.
func (q *Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		OptionA:      q.OptionA,
		OptionB:      q.OptionB,
		OptionC:      q.OptionC,
		OrderNum:     q.OrderNum,
	}
}
