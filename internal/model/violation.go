package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationKind is one of the four abstract integrity inputs, or a monitor-side event.
type ViolationKind string

const (
	ViolationFullscreenExited ViolationKind = "fullscreen_exited"
	ViolationVisibilityHidden ViolationKind = "visibility_hidden"
	ViolationFocusLost        ViolationKind = "focus_lost"
	ViolationBlockedShortcut  ViolationKind = "blocked_shortcut"
	ViolationGraceExpired     ViolationKind = "grace_expired"
	ViolationCompliant        ViolationKind = "compliant"
	ViolationBreached         ViolationKind = "breached"
)

// ValidViolationKind reports whether k is a kind a client may report.
func ValidViolationKind(k ViolationKind) bool {
	switch k {
	case ViolationFullscreenExited, ViolationVisibilityHidden, ViolationFocusLost,
		ViolationBlockedShortcut, ViolationGraceExpired, ViolationCompliant, ViolationBreached:
		return true
	}
	return false
}

// ViolationEvent is a client-reported integrity transition. It is an
// untrusted hint: it never alters scoring.
type ViolationEvent struct {
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	Kind       ViolationKind `json:"kind"`
	Reason     string        `json:"reason"`
	Warnings   int           `json:"warnings"`
	State      string        `json:"state"`
	RecordedAt time.Time     `json:"recorded_at"`
}
