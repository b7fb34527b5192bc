package model

import (
	"time"

	"github.com/google/uuid"
)

// Assignment gates which students may fetch an exam by its join code.
type Assignment struct {
	ExamID       uuid.UUID `json:"exam_id"`
	StudentEmail string    `json:"student_email"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// AllowedStudent is a roster entry an admin may assign to exams.
type AllowedStudent struct {
	ID        int       `json:"id"`
	AdminID   int       `json:"admin_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignStudentsRequest replaces the assignment list of an exam.
type AssignStudentsRequest struct {
	Emails []string `json:"emails" binding:"dive,required,email,max=255"`
}

// AssignExamsRequest replaces the set of the admin's exams one student may open.
// An empty ExamIDs removes the student from all of them.
type AssignExamsRequest struct {
	Email   string      `json:"email" binding:"required,email,max=255"`
	ExamIDs []uuid.UUID `json:"exam_ids" binding:"max=200"`
}

// AddAllowedStudentRequest adds an email to the admin's roster.
type AddAllowedStudentRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}
