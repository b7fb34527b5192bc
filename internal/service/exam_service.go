package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/grading"
	"github.com/stemsi/examsecure/internal/joincode"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/timeutil"
)

// maxCodeAttempts bounds join code regeneration on collision.
const maxCodeAttempts = 5

type examStore interface {
	SaveWithQuestions(ctx context.Context, e *model.Exam, questions []model.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetByCode(ctx context.Context, code string) (*model.Exam, error)
	ListByOwnerPaginated(ctx context.Context, ownerID, limit, offset int) ([]model.Exam, int, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID int) (string, error)
}

type questionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

type assignmentChecker interface {
	IsAssigned(ctx context.Context, examID uuid.UUID, email string) (bool, error)
}

type examCache interface {
	Get(ctx context.Context, code string) (*model.ExamPayload, error)
	Set(ctx context.Context, payload *model.ExamPayload) error
	Invalidate(ctx context.Context, code string) error
}

// ExamService handles exam authoring, lookup by join code, and payload caching.
type ExamService struct {
	exams       examStore
	questions   questionStore
	assignments assignmentChecker
	cache       examCache
	codeLength  int
	now         func() time.Time
	log         zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams examStore,
	questions questionStore,
	assignments assignmentChecker,
	cache examCache,
	codeLength int,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:       exams,
		questions:   questions,
		assignments: assignments,
		cache:       cache,
		codeLength:  codeLength,
		now:         timeutil.Now,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// Validate checks an authoring request without touching storage. Every
// question needs a non-blank correct answer and the exam needs at least one
// question.
func (s *ExamService) Validate(req *model.ExamRequest) (*model.Exam, []model.Question, error) {
	ve := &ValidationError{}

	if strings.TrimSpace(req.Title) == "" {
		ve.add("title", "Title is required")
	}
	if req.DurationMinutes <= 0 {
		ve.add("duration_minutes", "Duration must be a positive number of minutes")
	}

	start, err := timeutil.ParseCivil(req.StartTime)
	if err != nil {
		ve.add("start_time", "Start time is not a valid timestamp")
	}
	end, err := timeutil.ParseCivil(req.EndTime)
	if err != nil {
		ve.add("end_time", "End time is not a valid timestamp")
	}
	if !(timeutil.Window{Start: start, End: end}).Valid() {
		ve.add("end_time", "End time must be after start time")
	}

	if len(req.Questions) == 0 {
		ve.add("questions", "Cannot save an exam without at least one question")
	}

	questions := make([]model.Question, len(req.Questions))
	for i, in := range req.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(in.QuestionText) == "" {
			ve.add(field+".question_text", fmt.Sprintf("Question %d has no text", i+1))
		}
		if strings.TrimSpace(in.CorrectAnswer) == "" {
			ve.add(field+".correct_answer", fmt.Sprintf("Question %d has no correct answer", i+1))
		}

		qt := model.QuestionType(in.QuestionType)
		var options []string
		if qt.HasOptions() {
			options = in.Options
		}
		questions[i] = model.Question{
			QuestionText:  in.QuestionText,
			QuestionType:  qt,
			Options:       options,
			CorrectAnswer: in.CorrectAnswer,
			Points:        in.Points,
		}
		questions[i].Points = grading.PointsOf(questions[i])
	}

	if err := ve.orNil(); err != nil {
		return nil, nil, err
	}

	exam := &model.Exam{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		StartTime:       start,
		EndTime:         end,
	}
	return exam, questions, nil
}

// Create validates and stores a new exam with its questions, allocating a
// fresh join code. A code collision regenerates the code up to maxCodeAttempts
// times.
func (s *ExamService) Create(ctx context.Context, ownerID int, req *model.ExamRequest) (*model.ExamDetail, error) {
	exam, questions, err := s.Validate(req)
	if err != nil {
		return nil, err
	}
	exam.OwnerID = ownerID

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := joincode.Generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("generate exam code: %w", err)
		}
		exam.ID = uuid.New()
		exam.ExamCode = code

		err = s.exams.SaveWithQuestions(ctx, exam, questions)
		if errors.Is(err, repository.ErrCodeTaken) {
			s.log.Warn().Str("exam_code", code).Int("attempt", attempt).Msg("Exam code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save exam: %w", err)
		}

		s.log.Info().
			Str("exam_id", exam.ID.String()).
			Str("exam_code", exam.ExamCode).
			Int("questions", len(questions)).
			Msg("Exam created")
		return &model.ExamDetail{Exam: *exam, Questions: questions}, nil
	}
	return nil, ErrCodeExhausted
}

// Update replaces an owned exam's fields and its whole question set. The join
// code is kept.
func (s *ExamService) Update(ctx context.Context, ownerID int, id uuid.UUID, req *model.ExamRequest) (*model.ExamDetail, error) {
	exam, questions, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.ownedExam(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	exam.ID = existing.ID
	exam.OwnerID = ownerID
	exam.ExamCode = existing.ExamCode

	if err := s.exams.SaveWithQuestions(ctx, exam, questions); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("save exam: %w", err)
	}
	s.invalidate(ctx, exam.ExamCode)

	s.log.Info().Str("exam_id", id.String()).Int("questions", len(questions)).Msg("Exam updated")
	return &model.ExamDetail{Exam: *exam, Questions: questions}, nil
}

// Delete removes an owned exam.
func (s *ExamService) Delete(ctx context.Context, ownerID int, id uuid.UUID) error {
	code, err := s.exams.Delete(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExamNotFound
		}
		return err
	}
	s.invalidate(ctx, code)
	s.log.Info().Str("exam_id", id.String()).Msg("Exam deleted")
	return nil
}

// Get returns an owned exam with its questions and answers.
func (s *ExamService) Get(ctx context.Context, ownerID int, id uuid.UUID) (*model.ExamDetail, error) {
	exam, err := s.ownedExam(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return &model.ExamDetail{Exam: *exam, Questions: questions}, nil
}

// GetOwned returns an owned exam without its questions.
func (s *ExamService) GetOwned(ctx context.Context, ownerID int, id uuid.UUID) (*model.Exam, error) {
	return s.ownedExam(ctx, ownerID, id)
}

// ListByOwner returns a page of the owner's exams.
func (s *ExamService) ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)

	exams, total, err := s.exams.ListByOwnerPaginated(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// FetchByCode returns the student view of an exam by join code. The student
// must be assigned to the exam. Correct answers are never included.
func (s *ExamService) FetchByCode(ctx context.Context, code, studentEmail string) (*model.ExamForStudent, error) {
	code = joincode.Normalize(code)
	if !joincode.Valid(code) {
		return nil, ErrExamNotFound
	}

	payload, err := s.payload(ctx, code)
	if err != nil {
		return nil, err
	}

	assigned, err := s.assignments.IsAssigned(ctx, payload.ExamID, studentEmail)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !assigned {
		return nil, ErrNotAssigned
	}

	window := timeutil.Window{Start: payload.StartTime, End: payload.EndTime}
	return &model.ExamForStudent{
		ExamPayload:  *payload,
		Availability: model.Availability(window.Status(s.now())),
	}, nil
}

// payload reads the cached payload, falling back to the database and warming
// the cache on a miss. Cache failures are logged and never fail the lookup.
func (s *ExamService) payload(ctx context.Context, code string) (*model.ExamPayload, error) {
	cached, err := s.cache.Get(ctx, code)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("exam_code", code).Msg("Exam cache read failed, falling back to database")
	}

	exam, err := s.exams.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	payload := BuildPayload(exam, questions)
	if err := s.cache.Set(ctx, payload); err != nil {
		s.log.Warn().Err(err).Str("exam_code", code).Msg("Failed to warm exam cache")
	}
	return payload, nil
}

func (s *ExamService) ownedExam(ctx context.Context, ownerID int, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}
	return exam, nil
}

func (s *ExamService) invalidate(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.log.Warn().Err(err).Str("exam_code", code).Msg("Failed to invalidate exam cache")
	}
}

// BuildPayload strips correct answers from questions and assembles the
// student-facing payload.
func BuildPayload(exam *model.Exam, questions []model.Question) *model.ExamPayload {
	out := make([]model.QuestionForStudent, len(questions))
	total := 0
	for i, q := range questions {
		points := grading.PointsOf(q)
		total += points
		out[i] = model.QuestionForStudent{
			ID:            q.ID,
			QuestionText:  q.QuestionText,
			QuestionType:  q.QuestionType,
			Options:       q.Options,
			Points:        points,
			QuestionOrder: q.QuestionOrder,
		}
	}
	return &model.ExamPayload{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		StartTime:       exam.StartTime,
		EndTime:         exam.EndTime,
		ExamCode:        exam.ExamCode,
		TotalPoints:     total,
		Questions:       out,
	}
}

// VerifyAssigned checks that the exam exists and the student is assigned to it.
func (s *ExamService) VerifyAssigned(ctx context.Context, examID uuid.UUID, studentEmail string) error {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExamNotFound
		}
		return err
	}
	assigned, err := s.assignments.IsAssigned(ctx, examID, studentEmail)
	if err != nil {
		return fmt.Errorf("check assignment: %w", err)
	}
	if !assigned {
		return ErrNotAssigned
	}
	return nil
}
