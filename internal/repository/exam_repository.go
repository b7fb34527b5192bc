package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/timeutil"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `e.id, e.owner_id, e.title, e.description, e.duration_minutes,
	e.start_time, e.end_time, e.exam_code,
	(SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id) AS question_count,
	e.created_at, e.updated_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.DurationMinutes,
		&e.StartTime, &e.EndTime, &e.ExamCode, &e.QuestionCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	e.StartTime = timeutil.InPtr(e.StartTime)
	e.EndTime = timeutil.InPtr(e.EndTime)
	e.CreatedAt = timeutil.In(e.CreatedAt)
	e.UpdatedAt = timeutil.In(e.UpdatedAt)
	return e, nil
}

// SaveWithQuestions upserts the exam row and replaces its question set in one
// transaction. Questions are deleted and reinserted so their ordinal order
// matches the slice order. An update of an exam owned by someone else affects
// no row and returns ErrNotFound; a join code collision returns ErrCodeTaken.
// On any error nothing is written.
func (r *ExamRepository) SaveWithQuestions(ctx context.Context, e *model.Exam, questions []model.Question) error {
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exams (id, owner_id, title, description, duration_minutes, start_time, end_time, exam_code)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
			     title = EXCLUDED.title,
			     description = EXCLUDED.description,
			     duration_minutes = EXCLUDED.duration_minutes,
			     start_time = EXCLUDED.start_time,
			     end_time = EXCLUDED.end_time,
			     updated_at = NOW()
			 WHERE exams.owner_id = EXCLUDED.owner_id
			 RETURNING exam_code, created_at, updated_at`,
			e.ID, e.OwnerID, e.Title, e.Description, e.DurationMinutes, e.StartTime, e.EndTime, e.ExamCode,
		).Scan(&e.ExamCode, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return ErrCodeTaken
			}
			return notFound(err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, e.ID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}

		for i := range questions {
			q := &questions[i]
			q.ExamID = e.ID
			q.QuestionOrder = i + 1
			var options interface{}
			if len(q.Options) > 0 {
				options = q.Options
			}
			if err := tx.QueryRow(ctx,
				`INSERT INTO questions (exam_id, question_text, question_type, options, correct_answer, points, question_order)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 RETURNING id`,
				q.ExamID, q.QuestionText, q.QuestionType, options, q.CorrectAnswer, q.Points, q.QuestionOrder,
			).Scan(&q.ID); err != nil {
				return fmt.Errorf("insert question %d: %w", q.QuestionOrder, err)
			}
		}

		e.QuestionCount = len(questions)
		e.CreatedAt = timeutil.In(e.CreatedAt)
		e.UpdatedAt = timeutil.In(e.UpdatedAt)
		return nil
	})
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id = $1`, id))
}

// GetByCode retrieves an exam by its join code.
func (r *ExamRepository) GetByCode(ctx context.Context, code string) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.exam_code = $1`, code))
}

// ListByOwnerPaginated retrieves an owner's exams, newest first.
func (r *ExamRepository) ListByOwnerPaginated(ctx context.Context, ownerID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.owner_id = $1
		 ORDER BY e.created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// Delete removes an exam owned by ownerID. Questions, attempts, and
// assignments cascade.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID, ownerID int) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM exams WHERE id = $1 AND owner_id = $2 RETURNING exam_code`, id, ownerID,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return code, nil
}
