package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/model"
)

type outcome struct {
	res *model.SubmitAttemptResponse
	err error
}

// Loop is the single goroutine on which ticks, host signals, user actions,
// and submission outcomes are applied to a Controller. Only the submission
// network call runs elsewhere.
type Loop struct {
	ctrl      *Controller
	submitter Submitter
	signals   <-chan SignalEvent
	actions   chan func(*Controller)
	results   chan outcome
	ticks     <-chan time.Time
	log       zerolog.Logger
}

// SignalEvent is a host signal with optional detail, as pushed by the platform.
type SignalEvent struct {
	Signal Signal
	Detail string
}

// NewLoop builds a session loop around cfg. Hooks run on the loop goroutine.
func NewLoop(cfg Config, env Environment, sink AuditSink, submitter Submitter, signals <-chan SignalEvent, hooks Hooks, log zerolog.Logger) *Loop {
	l := &Loop{
		submitter: submitter,
		signals:   signals,
		actions:   make(chan func(*Controller), 16),
		results:   make(chan outcome, 1),
		log:       log.With().Str("component", "session_loop").Logger(),
	}
	l.ctrl = NewController(cfg, env, sink, nil, hooks, log)
	return l
}

// Controller returns the loop's controller. Only call its methods from
// inside Do callbacks or hooks once Run has started.
func (l *Loop) Controller() *Controller { return l.ctrl }

// Do schedules fn on the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func(*Controller)) {
	select {
	case l.actions <- fn:
	case <-ctx.Done():
	}
}

// Run starts the session and processes events until it is finalized or ctx
// is cancelled. A failed submission keeps the loop alive so a Retry
// scheduled through Do can resend it.
func (l *Loop) Run(ctx context.Context) (*model.SubmitAttemptResponse, error) {
	l.ctrl.dispatch = func(s Submission) {
		go func() {
			res, err := l.submitter.Submit(ctx, s)
			select {
			case l.results <- outcome{res: res, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	ticks := l.ticks
	if ticks == nil {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		ticks = ticker.C
	}

	if err := l.ctrl.Start(); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			l.ctrl.timer.Stop()
			l.ctrl.monitor.Stop()
			return nil, ctx.Err()

		case <-ticks:
			l.ctrl.Tick()

		case ev, ok := <-l.signals:
			if !ok {
				l.signals = nil
				continue
			}
			l.ctrl.Signal(ev.Signal, ev.Detail)

		case fn := <-l.actions:
			fn(l.ctrl)

		case o := <-l.results:
			l.ctrl.Complete(o.res, o.err)
		}

		if l.ctrl.Status() == StatusFinalized {
			return l.ctrl.Result(), nil
		}
	}
}
