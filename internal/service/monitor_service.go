package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/metrics"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/timeutil"
)

// ErrInvalidViolation is returned for an event with an unknown kind.
var ErrInvalidViolation = errors.New("unknown violation kind")

const maxReasonLength = 500

type monitorStore interface {
	GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
	ListViolations(ctx context.Context, examID uuid.UUID, studentID int) ([]model.ViolationEvent, error)
	SetLiveWarnings(ctx context.Context, examID uuid.UUID, studentID, warnings int) error
	GetLiveWarnings(ctx context.Context, examID uuid.UUID) (map[int]int, error)
	Publish(ctx context.Context, examID uuid.UUID, payload []byte) error
	Enqueue(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, examID uuid.UUID) (<-chan []byte, func() error)
}

// MonitorService records client-reported integrity events and serves the
// live monitor. Events are hints from an untrusted client; they never change
// scoring.
type MonitorService struct {
	store   monitorStore
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(store monitorStore, m *metrics.Metrics, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		store:   store,
		metrics: m,
		now:     timeutil.Now,
		log:     log.With().Str("component", "monitor_service").Logger(),
	}
}

// MonitorEvent is the message published to admins attached to an exam monitor.
type MonitorEvent struct {
	Type string               `json:"type"`
	Data model.ViolationEvent `json:"data"`
}

// RecordViolation queues ev for persistence and broadcasts it to monitors.
// Queueing is required; the live counter and the broadcast are best effort.
func (s *MonitorService) RecordViolation(ctx context.Context, ev model.ViolationEvent) error {
	if !model.ValidViolationKind(ev.Kind) {
		return ErrInvalidViolation
	}
	ev.Reason = strings.TrimSpace(ev.Reason)
	if r := []rune(ev.Reason); len(r) > maxReasonLength {
		ev.Reason = string(r[:maxReasonLength])
	}
	if ev.Warnings < 0 {
		ev.Warnings = 0
	}
	ev.RecordedAt = s.now()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	if err := s.store.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}
	s.metrics.ViolationsQueued.WithLabelValues(string(ev.Kind)).Inc()

	if err := s.store.SetLiveWarnings(ctx, ev.ExamID, ev.StudentID, ev.Warnings); err != nil {
		s.log.Warn().Err(err).Msg("Failed to update live warning counter")
	}

	msg, _ := json.Marshal(MonitorEvent{Type: "violation", Data: ev})
	if err := s.store.Publish(ctx, ev.ExamID, msg); err != nil {
		s.log.Warn().Err(err).Msg("Failed to publish violation to monitor channel")
	}
	return nil
}

// ProgressSnapshot holds persisted violation counts and the last reported
// warning level of every student seen in an exam.
type ProgressSnapshot struct {
	ViolationCounts map[int]int64 // student_id → persisted events
	LiveWarnings    map[int]int   // student_id → last reported warnings
	TotalViolations int64
}

// GetProgress fetches persisted counts and live warnings concurrently.
func (s *MonitorService) GetProgress(ctx context.Context, examID uuid.UUID) (*ProgressSnapshot, error) {
	snapshot := &ProgressSnapshot{
		ViolationCounts: make(map[int]int64),
		LiveWarnings:    make(map[int]int),
	}

	var (
		counts   map[int]int64
		live     map[int]int
		countErr error
		liveErr  error
		wg       sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		counts, countErr = s.store.GetViolationCounts(ctx, examID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		live, liveErr = s.store.GetLiveWarnings(ctx, examID)
	}()

	wg.Wait()

	// Persisted counts are critical; live warnings are best-effort.
	if countErr != nil {
		return nil, countErr
	}
	if counts != nil {
		snapshot.ViolationCounts = counts
		for _, c := range counts {
			snapshot.TotalViolations += c
		}
	}
	if liveErr == nil && live != nil {
		snapshot.LiveWarnings = live
	}
	return snapshot, nil
}

// History returns the recorded audit trail of one student.
func (s *MonitorService) History(ctx context.Context, examID uuid.UUID, studentID int) ([]model.ViolationEvent, error) {
	out, err := s.store.ListViolations(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ViolationEvent{}
	}
	return out, nil
}

// Watch streams raw monitor events of an exam. The caller must invoke the
// returned func to detach.
func (s *MonitorService) Watch(ctx context.Context, examID uuid.UUID) (<-chan []byte, func() error) {
	return s.store.Subscribe(ctx, examID)
}
