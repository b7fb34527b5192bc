package session

import (
	"fmt"
	"time"

	"github.com/stemsi/examsecure/internal/model"
)

// State of the integrity monitor.
type State int

const (
	StateClean State = iota
	StateWarned
	StateBreached
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateWarned:
		return "warned"
	case StateBreached:
		return "breached"
	}
	return "unknown"
}

// Defaults for the escalation policy.
const (
	DefaultGraceSeconds = 10
	DefaultMaxWarnings  = 2
)

// Monitor runs the violation escalation state machine. Each violation input
// raises the warning counter and (re)starts a grace countdown. A compliant
// environment cancels the countdown; its expiry raises the counter again and
// starts a new one. Once the counter exceeds maxWarnings the monitor is
// breached, reports it once, and stops.
//
// Like Timer, Monitor is driven from a single goroutine.
type Monitor struct {
	env          Environment
	graceSeconds int
	maxWarnings  int
	onTransition func(Transition)
	onBreach     func()
	now          func() time.Time

	state       State
	warnings    int
	running     bool
	graceActive bool
	graceLeft   int
}

// NewMonitor creates a stopped monitor. Non-positive graceSeconds or
// maxWarnings select the defaults.
func NewMonitor(env Environment, graceSeconds, maxWarnings int, onTransition func(Transition), onBreach func()) *Monitor {
	if graceSeconds <= 0 {
		graceSeconds = DefaultGraceSeconds
	}
	if maxWarnings <= 0 {
		maxWarnings = DefaultMaxWarnings
	}
	return &Monitor{
		env:          env,
		graceSeconds: graceSeconds,
		maxWarnings:  maxWarnings,
		onTransition: onTransition,
		onBreach:     onBreach,
		now:          time.Now,
	}
}

// Start begins monitoring. It has no effect once breached.
func (m *Monitor) Start() {
	if m.state == StateBreached {
		return
	}
	m.running = true
}

// Stop halts monitoring and cancels any grace countdown. It is idempotent.
func (m *Monitor) Stop() {
	m.running = false
	m.graceActive = false
}

// Signal feeds a host event into the state machine.
func (m *Monitor) Signal(sig Signal, detail string) {
	if !m.running {
		return
	}
	if sig == EnvironmentChanged {
		m.checkCompliance()
		return
	}
	if !sig.IsViolation() {
		return
	}

	reason := describe(sig)
	if detail != "" {
		reason += ": " + detail
	}
	m.escalate(sig.Kind(), reason)
}

// Tick advances the grace countdown by one second.
func (m *Monitor) Tick() {
	if !m.running || !m.graceActive {
		return
	}
	if m.checkCompliance() {
		return
	}

	m.graceLeft--
	if m.graceLeft > 0 {
		return
	}
	m.escalate(model.ViolationGraceExpired,
		fmt.Sprintf("environment not restored within %d seconds", m.graceSeconds))
}

// State returns the current state.
func (m *Monitor) State() State { return m.state }

// Warnings returns the running violation counter. It never decreases.
func (m *Monitor) Warnings() int { return m.warnings }

// GraceRemaining returns the seconds left in the active grace countdown, or 0.
func (m *Monitor) GraceRemaining() int {
	if !m.graceActive {
		return 0
	}
	return m.graceLeft
}

// Running reports whether the monitor accepts input.
func (m *Monitor) Running() bool { return m.running }

func (m *Monitor) escalate(kind model.ViolationKind, reason string) {
	m.warnings++

	if m.warnings > m.maxWarnings {
		m.state = StateBreached
		m.running = false
		m.graceActive = false
		m.emit(kind, reason)
		if m.onBreach != nil {
			m.onBreach()
		}
		return
	}

	m.state = StateWarned
	m.graceActive = true
	m.graceLeft = m.graceSeconds
	m.emit(kind, reason)
}

// checkCompliance cancels the grace countdown when the environment is
// compliant again. The counter is kept.
func (m *Monitor) checkCompliance() bool {
	if !m.graceActive || !Compliant(m.env) {
		return false
	}
	m.graceActive = false
	m.graceLeft = 0
	m.emit(model.ViolationCompliant, "environment restored")
	return true
}

func (m *Monitor) emit(kind model.ViolationKind, reason string) {
	if m.onTransition == nil {
		return
	}
	m.onTransition(Transition{
		Kind:     kind,
		Reason:   reason,
		Warnings: m.warnings,
		State:    m.state,
		At:       m.now(),
	})
}

func describe(sig Signal) string {
	switch sig {
	case FullscreenExited:
		return "left fullscreen"
	case VisibilityHidden:
		return "exam hidden"
	case FocusLost:
		return "exam lost focus"
	case BlockedShortcut:
		return "blocked shortcut pressed"
	}
	return sig.String()
}
