package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/grading"
	"github.com/stemsi/examsecure/internal/metrics"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/timeutil"
)

type attemptStore interface {
	InsertCompleted(ctx context.Context, a *model.Attempt, rejectDuplicate bool) error
	GetForStudent(ctx context.Context, id uuid.UUID, studentID int) (*model.Attempt, string, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.AttemptSummary, error)
	ListByOwnerPaginated(ctx context.Context, ownerID int, examID *uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error)
}

type examReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// AttemptService scores submitted attempts against the stored question set
// and serves result listings.
type AttemptService struct {
	attempts    attemptStore
	exams       examReader
	questions   questionStore
	assignments assignmentChecker
	policy      string
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts attemptStore,
	exams examReader,
	questions questionStore,
	assignments assignmentChecker,
	policy string,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		exams:       exams,
		questions:   questions,
		assignments: assignments,
		policy:      policy,
		metrics:     m,
		now:         timeutil.Now,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Submit grades req for studentID and stores exactly one completed attempt.
// The student must be assigned to the exam under studentEmail. Client-computed
// scores are never trusted; the violation count is recorded as reported.
func (s *AttemptService) Submit(ctx context.Context, studentID int, studentEmail string, req *model.SubmitAttemptRequest) (*model.SubmitAttemptResponse, error) {
	if req.StudentID != 0 && req.StudentID != studentID {
		s.metrics.AttemptsSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrStudentMismatch
	}

	started := time.Now()
	defer func() { s.metrics.ScoringDuration.Observe(time.Since(started).Seconds()) }()

	if _, err := s.exams.GetByID(ctx, req.ExamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.AttemptsSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, ErrExamNotFound
		}
		return nil, s.failed(err, req.ExamID, studentID)
	}

	assigned, err := s.assignments.IsAssigned(ctx, req.ExamID, studentEmail)
	if err != nil {
		return nil, s.failed(err, req.ExamID, studentID)
	}
	if !assigned {
		s.metrics.AttemptsSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrNotAssigned
	}

	questions, err := s.questions.ListByExam(ctx, req.ExamID)
	if err != nil {
		return nil, s.failed(err, req.ExamID, studentID)
	}

	result := grading.Score(questions, req.Answers)

	answers := req.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	submittedAt := s.now()
	attempt := &model.Attempt{
		ExamID:         req.ExamID,
		StudentID:      studentID,
		Answers:        answers,
		ViolationCount: req.ViolationCount,
		Score:          result.Score,
		TotalPoints:    result.TotalPoints,
		Percentage:     result.PercentageFloat(),
		SubmittedAt:    &submittedAt,
	}

	reject := s.policy != config.DuplicatePolicyAppend
	if err := s.attempts.InsertCompleted(ctx, attempt, reject); err != nil {
		if errors.Is(err, repository.ErrAlreadySubmitted) {
			s.metrics.AttemptsSubmitted.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			return nil, ErrAlreadySubmitted
		}
		return nil, s.failed(err, req.ExamID, studentID)
	}

	s.metrics.AttemptsSubmitted.WithLabelValues(metrics.OutcomeScored).Inc()
	s.log.Info().
		Str("exam_id", req.ExamID.String()).
		Int("student_id", studentID).
		Int("score", result.Score).
		Int("total_points", result.TotalPoints).
		Str("percentage", result.Percentage.StringFixed(2)).
		Int("violations", req.ViolationCount).
		Msg("Attempt scored")

	return &model.SubmitAttemptResponse{
		Score:       attempt.Score,
		TotalPoints: attempt.TotalPoints,
		Percentage:  attempt.Percentage,
		Attempt:     attempt,
	}, nil
}

// failed logs the underlying cause and returns the generic submission error.
func (s *AttemptService) failed(err error, examID uuid.UUID, studentID int) error {
	s.metrics.AttemptsSubmitted.WithLabelValues(metrics.OutcomeFailed).Inc()
	s.log.Error().Err(err).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Attempt submission failed")
	return ErrSubmissionFailed
}

// DetailedResult returns an attempt of studentID with per-question correctness.
func (s *AttemptService) DetailedResult(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.DetailedResult, error) {
	attempt, title, err := s.attempts.GetForStudent(ctx, attemptID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	questions, err := s.questions.ListByExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return &model.DetailedResult{
		Attempt:   attempt,
		ExamTitle: title,
		Questions: grading.Detail(questions, attempt.Answers),
	}, nil
}

// StudentResults lists a student's attempts, newest first.
func (s *AttemptService) StudentResults(ctx context.Context, studentID int) ([]model.AttemptSummary, error) {
	results, err := s.attempts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []model.AttemptSummary{}
	}
	return results, nil
}

// OwnerResults lists attempts on the owner's exams, optionally for one exam.
func (s *AttemptService) OwnerResults(ctx context.Context, ownerID int, examID *uuid.UUID, page, perPage int) ([]model.AttemptSummary, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)

	results, total, err := s.attempts.ListByOwnerPaginated(ctx, ownerID, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []model.AttemptSummary{}
	}
	return results, response.NewPagination(page, perPage, total), nil
}
