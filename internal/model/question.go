package model

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// Question represents a single exam question.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Points        int          `json:"points"`
	QuestionOrder int          `json:"question_order"`
}

// QuestionInput is a single question inside an ExamRequest.
// CorrectAnswer is checked by the authoring service so the rejection carries
// a specific message.
type QuestionInput struct {
	QuestionText  string   `json:"question_text" binding:"required,max=5000"`
	QuestionType  string   `json:"question_type" binding:"required,oneof=multiple_choice true_false short_answer"`
	Options       []string `json:"options" binding:"omitempty,max=26"`
	CorrectAnswer string   `json:"correct_answer" binding:"max=1000"`
	Points        int      `json:"points" binding:"omitempty,min=0,max=1000"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID            uuid.UUID    `json:"id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options,omitempty"`
	Points        int          `json:"points"`
	QuestionOrder int          `json:"question_order"`
}
