package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
)

type studentStore interface {
	ListStudents(ctx context.Context) ([]model.User, error)
	SetStudentActive(ctx context.Context, id int, active bool) error
	DeleteStudent(ctx context.Context, id int) error
}

// StudentService handles student account administration.
type StudentService struct {
	students studentStore
	sessions sessionStore
	log      zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(students studentStore, sessions sessionStore, log zerolog.Logger) *StudentService {
	return &StudentService{
		students: students,
		sessions: sessions,
		log:      log.With().Str("component", "student_service").Logger(),
	}
}

// List returns all student accounts.
func (s *StudentService) List(ctx context.Context) ([]model.User, error) {
	out, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.User{}
	}
	return out, nil
}

// SetActive activates or deactivates a student. Deactivation ends any live session.
func (s *StudentService) SetActive(ctx context.Context, id int, active bool) error {
	if err := s.students.SetStudentActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !active {
		s.endSession(ctx, id)
	}
	s.log.Info().Int("student_id", id).Bool("active", active).Msg("Student status updated")
	return nil
}

// Delete removes a student account and its attempts.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	if err := s.students.DeleteStudent(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.endSession(ctx, id)
	s.log.Info().Int("student_id", id).Msg("Student deleted")
	return nil
}

func (s *StudentService) endSession(ctx context.Context, id int) {
	if err := s.sessions.Clear(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("student_id", id).Msg("Failed to clear student session")
	}
}
