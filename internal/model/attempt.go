package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// Attempt is one student's scored run through one exam.
type Attempt struct {
	ID             uuid.UUID         `json:"id"`
	ExamID         uuid.UUID         `json:"exam_id"`
	StudentID      int               `json:"student_id"`
	Answers        map[string]string `json:"answers"`
	ViolationCount int               `json:"violation_count"`
	Score          int               `json:"score"`
	TotalPoints    int               `json:"total_points"`
	Percentage     float64           `json:"percentage"`
	Status         AttemptStatus     `json:"status"`
	SubmittedAt    *time.Time        `json:"submitted_at,omitempty"`
}

// SubmitAttemptRequest is the payload for submitting a finished attempt.
// StudentID is optional; when present it must match the authenticated student.
type SubmitAttemptRequest struct {
	ExamID         uuid.UUID         `json:"exam_id" binding:"required"`
	StudentID      int               `json:"student_id" binding:"omitempty,min=1"`
	Answers        map[string]string `json:"answers"`
	ViolationCount int               `json:"violation_count" binding:"min=0,max=1000"`
}

// SubmitAttemptResponse is the authoritative scoring result.
type SubmitAttemptResponse struct {
	Score       int      `json:"score"`
	TotalPoints int      `json:"total_points"`
	Percentage  float64  `json:"percentage"`
	Attempt     *Attempt `json:"attempt"`
}

// AttemptSummary is a row in a result listing.
type AttemptSummary struct {
	ID             uuid.UUID  `json:"id"`
	ExamID         uuid.UUID  `json:"exam_id"`
	ExamTitle      string     `json:"exam_title"`
	ExamCode       string     `json:"exam_code"`
	StudentID      int        `json:"student_id"`
	StudentName    string     `json:"student_name,omitempty"`
	StudentEmail   string     `json:"student_email,omitempty"`
	Score          int        `json:"score"`
	TotalPoints    int        `json:"total_points"`
	Percentage     float64    `json:"percentage"`
	ViolationCount int        `json:"violation_count"`
	Status         string     `json:"status"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
}

// QuestionResult is the per-question breakdown of a detailed result.
type QuestionResult struct {
	QuestionID    uuid.UUID    `json:"question_id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options,omitempty"`
	StudentAnswer string       `json:"student_answer"`
	CorrectAnswer string       `json:"correct_answer"`
	Points        int          `json:"points"`
	IsCorrect     bool         `json:"is_correct"`
}

// DetailedResult is an attempt with per-question correctness.
type DetailedResult struct {
	Attempt   *Attempt         `json:"attempt"`
	ExamTitle string           `json:"exam_title"`
	Questions []QuestionResult `json:"questions"`
}
