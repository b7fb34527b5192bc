package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/model"
)

// Status of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusActive
	StatusFinalizing
	StatusFinalized
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusActive:
		return "active"
	case StatusFinalizing:
		return "finalizing"
	case StatusFinalized:
		return "finalized"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Reason a session was finalized.
type Reason string

const (
	ReasonManual  Reason = "manual"
	ReasonTimeout Reason = "timeout"
	ReasonBreach  Reason = "breach"
)

// Session errors.
var (
	ErrNotActive   = errors.New("session is not active")
	ErrNotFailed   = errors.New("session has no failed submission to retry")
	ErrUnknownExam = errors.New("exam id is required")
)

// Submission is the frozen snapshot sent for scoring.
type Submission struct {
	ExamID         uuid.UUID
	StudentID      int
	Answers        map[string]string
	ViolationCount int
	Reason         Reason
}

// Submitter sends a finished attempt to the scoring service.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (*model.SubmitAttemptResponse, error)
}

// Config describes one exam session.
type Config struct {
	ExamID          uuid.UUID
	StudentID       int
	DurationSeconds int
	GraceSeconds    int
	MaxWarnings     int
}

// Hooks are optional UI callbacks, all invoked on the loop goroutine.
type Hooks struct {
	OnTimeWarning func(remaining int)
	OnTransition  func(t Transition)
	OnStatus      func(s Status)
}

// Controller owns the answer map and is the only component that may submit.
// Timer expiry, monitor breach, and manual submit all funnel into Finalize,
// which runs at most once per session. A failed submission keeps the
// snapshot so Retry can resend it unchanged.
type Controller struct {
	cfg      Config
	timer    *Timer
	monitor  *Monitor
	sink     AuditSink
	hooks    Hooks
	dispatch func(Submission)
	log      zerolog.Logger

	finalizing atomic.Bool

	mu         sync.Mutex
	status     Status
	answers    map[string]string
	submission *Submission
	result     *model.SubmitAttemptResponse
	lastErr    error
}

// NewController wires a timer and monitor for one session. dispatch starts
// the asynchronous submission of a snapshot and must not block; its outcome
// is reported back through Complete.
func NewController(cfg Config, env Environment, sink AuditSink, dispatch func(Submission), hooks Hooks, log zerolog.Logger) *Controller {
	c := &Controller{
		cfg:      cfg,
		sink:     sink,
		hooks:    hooks,
		dispatch: dispatch,
		answers:  make(map[string]string),
		log:      log.With().Str("component", "session").Str("exam_id", cfg.ExamID.String()).Logger(),
	}
	c.timer = NewTimer(hooks.OnTimeWarning)
	c.monitor = NewMonitor(env, cfg.GraceSeconds, cfg.MaxWarnings, c.onTransition, func() {
		c.Finalize(ReasonBreach)
	})
	return c
}

// Start begins the countdown and monitoring together.
func (c *Controller) Start() error {
	if c.cfg.ExamID == uuid.Nil {
		return ErrUnknownExam
	}
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.status = StatusActive
	c.mu.Unlock()

	c.monitor.Start()
	c.timer.Start(c.cfg.DurationSeconds, func() { c.Finalize(ReasonTimeout) })
	c.log.Info().Int("duration_seconds", c.cfg.DurationSeconds).Msg("Session started")
	c.notify(StatusActive)
	return nil
}

// SaveAnswer upserts an answer. Blank values are kept and count as
// unanswered when scored. Answers are frozen once finalize begins.
func (c *Controller) SaveAnswer(questionID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return ErrNotActive
	}
	c.answers[questionID] = value
	return nil
}

// Answers returns a copy of the answer map.
func (c *Controller) Answers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyAnswers(c.answers)
}

// Tick advances the timer and the monitor by one second. When both reach a
// terminal event in the same tick only the first finalizes.
func (c *Controller) Tick() {
	c.timer.Tick()
	c.monitor.Tick()
}

// Signal forwards a host event to the monitor.
func (c *Controller) Signal(sig Signal, detail string) {
	c.monitor.Signal(sig, detail)
}

// Submit finalizes on the student's request.
func (c *Controller) Submit() bool {
	return c.Finalize(ReasonManual)
}

// Finalize stops the timer and the monitor, snapshots the answers, and
// dispatches the submission. It returns false if finalize already began.
func (c *Controller) Finalize(reason Reason) bool {
	if !c.finalizing.CompareAndSwap(false, true) {
		c.log.Debug().Str("reason", string(reason)).Msg("Finalize already in progress, ignoring")
		return false
	}

	c.mu.Lock()
	if c.status == StatusIdle {
		// Never started; a later Start may still finalize.
		c.mu.Unlock()
		c.finalizing.Store(false)
		return false
	}
	c.mu.Unlock()

	c.timer.Stop()
	c.monitor.Stop()

	c.mu.Lock()
	sub := Submission{
		ExamID:         c.cfg.ExamID,
		StudentID:      c.cfg.StudentID,
		Answers:        copyAnswers(c.answers),
		ViolationCount: c.monitor.Warnings(),
		Reason:         reason,
	}
	c.submission = &sub
	c.status = StatusFinalizing
	c.mu.Unlock()

	c.log.Info().
		Str("reason", string(reason)).
		Int("answers", len(sub.Answers)).
		Int("violations", sub.ViolationCount).
		Msg("Finalizing session")
	c.notify(StatusFinalizing)
	c.dispatch(sub)
	return true
}

// Complete records the outcome of a dispatched submission. On failure the
// snapshot and answers are kept for Retry.
func (c *Controller) Complete(res *model.SubmitAttemptResponse, err error) {
	c.mu.Lock()
	if c.status != StatusFinalizing {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.status = StatusFailed
		c.lastErr = err
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("Submission failed, answers kept for retry")
		c.notify(StatusFailed)
		return
	}
	c.status = StatusFinalized
	c.result = res
	c.lastErr = nil
	c.mu.Unlock()

	c.log.Info().Msg("Session finalized")
	c.notify(StatusFinalized)
}

// Retry resends the same snapshot after a failed submission.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.status != StatusFailed || c.submission == nil {
		c.mu.Unlock()
		return ErrNotFailed
	}
	c.status = StatusFinalizing
	sub := *c.submission
	c.mu.Unlock()

	c.log.Info().Msg("Retrying submission")
	c.notify(StatusFinalizing)
	c.dispatch(sub)
	return nil
}

// Status returns the session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Result returns the server's scoring result once finalized.
func (c *Controller) Result() *model.SubmitAttemptResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the last submission error, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Remaining returns the seconds left on the countdown.
func (c *Controller) Remaining() int { return c.timer.Remaining() }

// Warnings returns the integrity counter.
func (c *Controller) Warnings() int { return c.monitor.Warnings() }

// MonitorState returns the integrity monitor state.
func (c *Controller) MonitorState() State { return c.monitor.State() }

// GraceRemaining returns the seconds left before an unresolved violation escalates.
func (c *Controller) GraceRemaining() int { return c.monitor.GraceRemaining() }

func (c *Controller) onTransition(t Transition) {
	c.log.Warn().
		Str("kind", string(t.Kind)).
		Str("state", t.State.String()).
		Int("warnings", t.Warnings).
		Msg(t.Reason)
	if c.sink != nil {
		c.sink.Record(context.Background(), t)
	}
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(t)
	}
}

func (c *Controller) notify(s Status) {
	if c.hooks.OnStatus != nil {
		c.hooks.OnStatus(s)
	}
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
