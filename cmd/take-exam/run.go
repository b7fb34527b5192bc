package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/client"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/session"
	"github.com/stemsi/examsecure/internal/terminal"
)

// runExam drives one exam session in the raw-mode terminal and returns the
// server's scoring result.
func runExam(ctx context.Context, cfg *config.ClientConfig, api *client.APIClient, studentID int, exam *model.ExamForStudent, log zerolog.Logger) (*model.SubmitAttemptResponse, error) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sink session.AuditSink
	stream, err := client.DialAudit(sessCtx, api.BaseURL(), exam.ExamID, api.Token(), log)
	if err != nil {
		log.Warn().Err(err).Msg("Audit stream unavailable, transitions are logged locally")
		sink = session.AuditFunc(func(_ context.Context, t session.Transition) {
			log.Warn().Str("kind", string(t.Kind)).Int("warnings", t.Warnings).Msg(t.Reason)
		})
	} else {
		defer stream.Close()
		sink = stream
	}

	host := terminal.NewHost(os.Stdin, os.Stdout, terminal.Options{
		MinCols:      cfg.MinCols,
		MinRows:      cfg.MinRows,
		BlurDebounce: cfg.BlurDebounce,
		HiddenAfter:  cfg.HiddenAfter,
	}, log)
	if err := host.Start(sessCtx); err != nil {
		return nil, err
	}
	defer host.Close()

	var (
		mu       sync.Mutex
		screen   = terminal.NewScreen(exam.Title, exam.Questions)
		status   = terminal.Status{MaxWarnings: cfg.MaxWarnings, Answers: map[string]string{}}
		fatalErr error
		loop     *session.Loop
	)
	redraw := func() {
		mu.Lock()
		defer mu.Unlock()
		screen.Render(os.Stdout, status)
	}
	// refresh copies controller state into the view; call on the loop goroutine.
	refresh := func(c *session.Controller) {
		mu.Lock()
		status.Remaining = c.Remaining()
		status.Warnings = c.Warnings()
		status.Grace = c.GraceRemaining()
		status.Answers = c.Answers()
		mu.Unlock()
		redraw()
	}
	notice := func(msg string) {
		mu.Lock()
		status.Notice = msg
		mu.Unlock()
	}

	hooks := session.Hooks{
		OnTimeWarning: func(remaining int) {
			notice(fmt.Sprintf("%d minute(s) remaining.", remaining/60))
		},
		OnTransition: func(t session.Transition) {
			notice("Warning: " + t.Reason)
		},
		OnStatus: func(s session.Status) {
			switch s {
			case session.StatusFinalizing:
				notice("Submitting...")
			case session.StatusFailed:
				err := loop.Controller().Err()
				if errors.Is(err, client.ErrAlreadySubmitted) {
					mu.Lock()
					fatalErr = err
					mu.Unlock()
					cancel()
					return
				}
				mu.Lock()
				status.Failed = true
				status.Notice = fmt.Sprintf("Submission failed: %v", err)
				mu.Unlock()
			case session.StatusActive:
				mu.Lock()
				status.Failed = false
				mu.Unlock()
			}
			redraw()
		},
	}

	loop = session.NewLoop(session.Config{
		ExamID:          exam.ExamID,
		StudentID:       studentID,
		DurationSeconds: sessionSeconds(exam, time.Now()),
		GraceSeconds:    int(cfg.GracePeriod / time.Second),
		MaxWarnings:     cfg.MaxWarnings,
	}, host, sink, api, host.Signals(), hooks, log)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sessCtx.Done():
				return
			case <-ticker.C:
				loop.Do(sessCtx, refresh)
			}
		}
	}()

	go func() {
		for {
			var in terminal.Input
			select {
			case <-sessCtx.Done():
				return
			case in = <-host.Inputs():
			}

			mu.Lock()
			cmd := screen.Handle(in, status.Failed)
			mu.Unlock()

			switch cmd.Kind {
			case terminal.CmdSave:
				loop.Do(sessCtx, func(c *session.Controller) {
					if err := c.SaveAnswer(cmd.QuestionID, cmd.Value); err != nil {
						log.Debug().Err(err).Msg("Answer not saved")
					}
					refresh(c)
				})
			case terminal.CmdSubmit:
				loop.Do(sessCtx, func(c *session.Controller) { c.Submit() })
			case terminal.CmdRetry:
				loop.Do(sessCtx, func(c *session.Controller) {
					if err := c.Retry(); err != nil {
						log.Debug().Err(err).Msg("Retry ignored")
					}
				})
			default:
				redraw()
			}
		}
	}()

	loop.Do(sessCtx, refresh)
	res, err := loop.Run(sessCtx)
	mu.Lock()
	defer mu.Unlock()
	if fatalErr != nil {
		return nil, fatalErr
	}
	return res, err
}

// sessionSeconds is the exam duration, cut short if the exam window closes first.
func sessionSeconds(exam *model.ExamForStudent, now time.Time) int {
	total := exam.DurationMinutes * 60
	if exam.EndTime != nil {
		if untilEnd := int(exam.EndTime.Sub(now).Seconds()); untilEnd < total {
			total = untilEnd
		}
	}
	return total
}
