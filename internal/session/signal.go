package session

import (
	"context"
	"time"

	"github.com/stemsi/examsecure/internal/model"
)

// Signal is a host-environment event pushed by the platform binding.
type Signal int

const (
	FullscreenExited Signal = iota + 1
	VisibilityHidden
	FocusLost
	BlockedShortcut
	// EnvironmentChanged asks the monitor to re-check compliance now instead
	// of waiting for the next tick.
	EnvironmentChanged
)

// Kind maps a violation signal to its reported kind.
func (s Signal) Kind() model.ViolationKind {
	switch s {
	case FullscreenExited:
		return model.ViolationFullscreenExited
	case VisibilityHidden:
		return model.ViolationVisibilityHidden
	case FocusLost:
		return model.ViolationFocusLost
	case BlockedShortcut:
		return model.ViolationBlockedShortcut
	}
	return ""
}

// IsViolation reports whether s is one of the four integrity inputs.
func (s Signal) IsViolation() bool {
	return s.Kind() != ""
}

func (s Signal) String() string {
	if s == EnvironmentChanged {
		return "environment_changed"
	}
	if k := s.Kind(); k != "" {
		return string(k)
	}
	return "unknown"
}

// Environment exposes the current compliance state of the host.
type Environment interface {
	Fullscreen() bool
	Visible() bool
	Focused() bool
}

// Compliant reports whether env is fullscreen, visible, and focused.
func Compliant(env Environment) bool {
	return env.Fullscreen() && env.Visible() && env.Focused()
}

// Transition is one integrity monitor state change.
type Transition struct {
	Kind     model.ViolationKind
	Reason   string
	Warnings int
	State    State
	At       time.Time
}

// AuditSink receives every monitor transition. Record must not block the loop.
type AuditSink interface {
	Record(ctx context.Context, t Transition)
}

// AuditFunc adapts a function to AuditSink.
type AuditFunc func(ctx context.Context, t Transition)

// Record calls f.
func (f AuditFunc) Record(ctx context.Context, t Transition) { f(ctx, t) }
