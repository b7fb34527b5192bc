package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/timeutil"
)

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// InsertCompleted writes one completed attempt. A transaction-scoped advisory
// lock on (exam, student) serializes concurrent submissions of the same
// student, so with rejectDuplicate the existence check and the insert cannot
// interleave with another submit. There is no storage constraint behind it.
func (r *AttemptRepository) InsertCompleted(ctx context.Context, a *model.Attempt, rejectDuplicate bool) error {
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1::text), $2)`,
			a.ExamID.String(), a.StudentID,
		); err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}

		if rejectDuplicate {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (
				     SELECT 1 FROM exam_attempts
				     WHERE exam_id = $1 AND student_id = $2 AND status = $3)`,
				a.ExamID, a.StudentID, model.AttemptStatusCompleted,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check existing attempt: %w", err)
			}
			if exists {
				return ErrAlreadySubmitted
			}
		}

		a.Status = model.AttemptStatusCompleted
		if err := tx.QueryRow(ctx,
			`INSERT INTO exam_attempts
			     (exam_id, student_id, answers, violation_count, score, total_points, percentage, status, submitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			a.ExamID, a.StudentID, a.Answers, a.ViolationCount, a.Score, a.TotalPoints,
			a.Percentage, a.Status, a.SubmittedAt,
		).Scan(&a.ID); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
}

// GetForStudent retrieves an attempt owned by studentID.
func (r *AttemptRepository) GetForStudent(ctx context.Context, id uuid.UUID, studentID int) (*model.Attempt, string, error) {
	a := &model.Attempt{}
	var title string
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.exam_id, a.student_id, a.answers, a.violation_count, a.score,
		        a.total_points, a.percentage::float8, a.status, a.submitted_at, e.title
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.id = $1 AND a.student_id = $2`, id, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Answers, &a.ViolationCount, &a.Score,
		&a.TotalPoints, &a.Percentage, &a.Status, &a.SubmittedAt, &title)
	if err != nil {
		return nil, "", notFound(err)
	}
	a.SubmittedAt = timeutil.InPtr(a.SubmittedAt)
	return a, title, nil
}

// ListByStudent lists a student's attempts, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.exam_id, e.title, e.exam_code, a.student_id, '', '',
		        a.score, a.total_points, a.percentage::float8, a.violation_count, a.status, a.submitted_at
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.student_id = $1
		 ORDER BY a.submitted_at DESC NULLS LAST`, studentID)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

// ListByOwnerPaginated lists attempts on exams owned by ownerID, optionally
// restricted to one exam.
func (r *AttemptRepository) ListByOwnerPaginated(ctx context.Context, ownerID int, examID *uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE e.owner_id = $1 AND ($2::uuid IS NULL OR a.exam_id = $2)`,
		ownerID, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.exam_id, e.title, e.exam_code, a.student_id, u.name, u.email,
		        a.score, a.total_points, a.percentage::float8, a.violation_count, a.status, a.submitted_at
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 JOIN users u ON u.id = a.student_id
		 WHERE e.owner_id = $1 AND ($2::uuid IS NULL OR a.exam_id = $2)
		 ORDER BY a.submitted_at DESC NULLS LAST
		 LIMIT $3 OFFSET $4`,
		ownerID, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	results, err := collectSummaries(rows)
	return results, total, err
}

func collectSummaries(rows pgx.Rows) ([]model.AttemptSummary, error) {
	defer rows.Close()

	var results []model.AttemptSummary
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.ExamID, &s.ExamTitle, &s.ExamCode, &s.StudentID, &s.StudentName,
			&s.StudentEmail, &s.Score, &s.TotalPoints, &s.Percentage, &s.ViolationCount, &s.Status,
			&s.SubmittedAt); err != nil {
			return nil, err
		}
		s.SubmittedAt = timeutil.InPtr(s.SubmittedAt)
		results = append(results, s)
	}
	return results, rows.Err()
}
