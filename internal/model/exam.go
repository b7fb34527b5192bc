package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         int        `json:"owner_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	ExamCode        string     `json:"exam_code"`
	QuestionCount   int        `json:"question_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Availability of an exam relative to its window.
type Availability string

const (
	AvailabilityOpen     Availability = "open"
	AvailabilityUpcoming Availability = "upcoming"
	AvailabilityClosed   Availability = "closed"
)

// ExamRequest is the payload for creating or replacing an exam with its full question set.
// Times are civil timestamps ("2006-01-02T15:04") interpreted at +05:30, or RFC3339.
type ExamRequest struct {
	Title           string          `json:"title" binding:"required,min=1,max=255"`
	Description     string          `json:"description" binding:"max=5000"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,min=1,max=1440"`
	StartTime       string          `json:"start_time" binding:"omitempty,max=40,civiltime"`
	EndTime         string          `json:"end_time" binding:"omitempty,max=40,civiltime"`
	Questions       []QuestionInput `json:"questions" binding:"dive"`
}

// LookupExamRequest is the payload for a student fetching an exam by join code.
type LookupExamRequest struct {
	ExamCode string `json:"exam_code" binding:"required,max=32,joincode"`
}

// ExamPayload is the Redis-cached payload sent to students (no correct answers).
type ExamPayload struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DurationMinutes int                  `json:"duration_minutes"`
	StartTime       *time.Time           `json:"start_time,omitempty"`
	EndTime         *time.Time           `json:"end_time,omitempty"`
	ExamCode        string               `json:"exam_code"`
	TotalPoints     int                  `json:"total_points"`
	Questions       []QuestionForStudent `json:"questions"`
}

// ExamForStudent wraps the cached payload with per-request availability.
type ExamForStudent struct {
	ExamPayload
	Availability Availability `json:"availability"`
}

// ExamDetail is an exam with its full question set, answers included, for its owner.
type ExamDetail struct {
	Exam
	Questions []Question `json:"questions"`
}
