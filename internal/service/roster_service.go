package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/timeutil"
)

type rosterStore interface {
	List(ctx context.Context, adminID int) ([]model.AllowedStudent, error)
	Add(ctx context.Context, s *model.AllowedStudent) error
	Delete(ctx context.Context, id, adminID int) error
	IsAllowed(ctx context.Context, adminID int, email string) (bool, error)
}

type assignmentStore interface {
	ReplaceForExam(ctx context.Context, examID uuid.UUID, emails []string) error
	Add(ctx context.Context, examID uuid.UUID, email string) error
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Assignment, error)
	ReplaceForStudent(ctx context.Context, ownerID int, email string, examIDs []uuid.UUID) error
	ListByStudent(ctx context.Context, ownerID int, email string) ([]model.Assignment, error)
}

// RosterService manages an admin's allowed students and exam assignments.
type RosterService struct {
	roster      rosterStore
	assignments assignmentStore
	exams       examReader
	now         func() time.Time
	log         zerolog.Logger
}

// NewRosterService creates a new RosterService.
func NewRosterService(roster rosterStore, assignments assignmentStore, exams examReader, log zerolog.Logger) *RosterService {
	return &RosterService{
		roster:      roster,
		assignments: assignments,
		exams:       exams,
		now:         timeutil.Now,
		log:         log.With().Str("component", "roster_service").Logger(),
	}
}

// List returns the admin's roster.
func (s *RosterService) List(ctx context.Context, adminID int) ([]model.AllowedStudent, error) {
	out, err := s.roster.List(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.AllowedStudent{}
	}
	return out, nil
}

// Add puts an email on the admin's roster.
func (s *RosterService) Add(ctx context.Context, adminID int, email string) (*model.AllowedStudent, error) {
	entry := &model.AllowedStudent{AdminID: adminID, Email: normalizeEmail(email)}
	if err := s.roster.Add(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return entry, nil
}

// Remove deletes a roster entry of the admin.
func (s *RosterService) Remove(ctx context.Context, adminID, id int) error {
	if err := s.roster.Delete(ctx, id, adminID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// IsAllowed reports whether the email is on the admin's roster.
func (s *RosterService) IsAllowed(ctx context.Context, adminID int, email string) (bool, error) {
	return s.roster.IsAllowed(ctx, adminID, normalizeEmail(email))
}

// AssignStudent adds one student to an owned exam. A repeat returns
// ErrAlreadyExists.
func (s *RosterService) AssignStudent(ctx context.Context, ownerID int, examID uuid.UUID, email string) (*model.Assignment, error) {
	if err := s.checkOwner(ctx, ownerID, examID); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if err := s.assignments.Add(ctx, examID, email); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return &model.Assignment{ExamID: examID, StudentEmail: email, AssignedAt: s.now()}, nil
}

// AssignStudents replaces the exam's assignment list. Applying the same list
// twice yields the same state.
func (s *RosterService) AssignStudents(ctx context.Context, ownerID int, examID uuid.UUID, emails []string) ([]model.Assignment, error) {
	if err := s.checkOwner(ctx, ownerID, examID); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))
	for _, e := range emails {
		e = normalizeEmail(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		unique = append(unique, e)
	}

	if err := s.assignments.ReplaceForExam(ctx, examID, unique); err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", examID.String()).Int("students", len(unique)).Msg("Exam assignments replaced")
	return s.assignments.ListByExam(ctx, examID)
}

// Assignments lists the students assigned to an owned exam.
func (s *RosterService) Assignments(ctx context.Context, ownerID int, examID uuid.UUID) ([]model.Assignment, error) {
	if err := s.checkOwner(ctx, ownerID, examID); err != nil {
		return nil, err
	}
	out, err := s.assignments.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Assignment{}
	}
	return out, nil
}

// AssignExamsToStudent replaces the owner's exams the student may open with
// examIDs. Every id must be an exam the owner holds; nothing changes otherwise.
func (s *RosterService) AssignExamsToStudent(ctx context.Context, ownerID int, email string, examIDs []uuid.UUID) ([]model.Assignment, error) {
	email = normalizeEmail(email)

	seen := make(map[uuid.UUID]struct{}, len(examIDs))
	unique := make([]uuid.UUID, 0, len(examIDs))
	for _, id := range examIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if err := s.checkOwner(ctx, ownerID, id); err != nil {
			return nil, err
		}
		unique = append(unique, id)
	}

	if err := s.assignments.ReplaceForStudent(ctx, ownerID, email, unique); err != nil {
		return nil, err
	}
	s.log.Info().Str("email", email).Int("exams", len(unique)).Msg("Student assignments replaced")
	return s.StudentAssignments(ctx, ownerID, email)
}

// StudentAssignments lists the owner's exams the student is assigned to.
func (s *RosterService) StudentAssignments(ctx context.Context, ownerID int, email string) ([]model.Assignment, error) {
	out, err := s.assignments.ListByStudent(ctx, ownerID, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Assignment{}
	}
	return out, nil
}

func (s *RosterService) checkOwner(ctx context.Context, ownerID int, examID uuid.UUID) error {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExamNotFound
		}
		return err
	}
	if exam.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
