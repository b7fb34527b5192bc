package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examsecure/internal/model"
)

// AssignmentRepository handles exam-student assignments.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// IsAssigned reports whether email may open the exam.
func (r *AssignmentRepository) IsAssigned(ctx context.Context, examID uuid.UUID, email string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_student_assignments WHERE exam_id = $1 AND student_email = $2)`,
		examID, strings.ToLower(email),
	).Scan(&ok)
	return ok, err
}

// ReplaceForExam replaces the exam's assignment list. Repeated emails collapse.
func (r *AssignmentRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, emails []string) error {
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM exam_student_assignments WHERE exam_id = $1`, examID); err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		for _, email := range emails {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exam_student_assignments (exam_id, student_email)
				 VALUES ($1, $2)
				 ON CONFLICT (exam_id, student_email) DO NOTHING`,
				examID, strings.ToLower(email),
			); err != nil {
				return fmt.Errorf("insert assignment: %w", err)
			}
		}
		return nil
	})
}

// ReplaceForStudent replaces which of ownerID's exams email is assigned to.
// Assignments to other admins' exams are left alone.
func (r *AssignmentRepository) ReplaceForStudent(ctx context.Context, ownerID int, email string, examIDs []uuid.UUID) error {
	email = strings.ToLower(email)
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM exam_student_assignments a
			 USING exams e
			 WHERE a.exam_id = e.id AND e.owner_id = $1 AND a.student_email = $2`,
			ownerID, email,
		); err != nil {
			return fmt.Errorf("clear student assignments: %w", err)
		}
		if len(examIDs) == 0 {
			return nil
		}
		ids := make([]string, len(examIDs))
		for i, id := range examIDs {
			ids[i] = id.String()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO exam_student_assignments (exam_id, student_email)
			 SELECT id, $3 FROM exams WHERE id = ANY($1::uuid[]) AND owner_id = $2
			 ON CONFLICT (exam_id, student_email) DO NOTHING`,
			ids, ownerID, email,
		)
		if err != nil {
			return fmt.Errorf("insert student assignments: %w", err)
		}
		return nil
	})
}

// ListByStudent lists email's assignments to ownerID's exams.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, ownerID int, email string) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.exam_id, a.student_email, a.assigned_at
		 FROM exam_student_assignments a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE e.owner_id = $1 AND a.student_email = $2
		 ORDER BY a.assigned_at DESC`, ownerID, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAssignment)
}

func scanAssignment(row pgx.CollectableRow) (model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(&a.ExamID, &a.StudentEmail, &a.AssignedAt)
	return a, err
}

// Add assigns one email. A repeat returns ErrAlreadyExists.
func (r *AssignmentRepository) Add(ctx context.Context, examID uuid.UUID, email string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_student_assignments (exam_id, student_email) VALUES ($1, $2)`,
		examID, strings.ToLower(email))
	if IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// ListByExam lists assignments of an exam, newest first.
func (r *AssignmentRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, student_email, assigned_at
		 FROM exam_student_assignments
		 WHERE exam_id = $1
		 ORDER BY assigned_at DESC, student_email`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ExamID, &a.StudentEmail, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
