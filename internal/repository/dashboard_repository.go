package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DashboardCounts are the headline numbers for one admin.
type DashboardCounts struct {
	Exams             int `json:"exams"`
	RosterSize        int `json:"roster_size"`
	CompletedAttempts int `json:"completed_attempts"`
	Violations        int `json:"violations"`
}

// DashboardUpcomingExam represents minimal data for exams whose window has not opened yet.
type DashboardUpcomingExam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	ExamCode        string     `json:"exam_code"`
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
}

// DashboardExamResult summarizes completed attempts on one exam.
type DashboardExamResult struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	LastSubmittedAt  *time.Time       `json:"last_submitted_at"`
	ParticipantCount int              `json:"participant_count"`
	AverageScore     *decimal.Decimal `json:"average_score"`
}

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// SummaryCounts retrieves the headline counts scoped to ownerID.
func (r *DashboardRepository) SummaryCounts(ctx context.Context, ownerID int) (DashboardCounts, error) {
	var c DashboardCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM exams WHERE owner_id = $1),
			(SELECT COUNT(*) FROM allowed_students WHERE admin_id = $1),
			(SELECT COUNT(*) FROM exam_attempts a JOIN exams e ON e.id = a.exam_id
			  WHERE e.owner_id = $1 AND a.status = 'completed'),
			(SELECT COUNT(*) FROM exam_violations v JOIN exams e ON e.id = v.exam_id
			  WHERE e.owner_id = $1)`,
		ownerID,
	).Scan(&c.Exams, &c.RosterSize, &c.CompletedAttempts, &c.Violations)
	return c, err
}

// UpcomingExams retrieves the next exams owned by ownerID that open after now.
func (r *DashboardRepository) UpcomingExams(ctx context.Context, ownerID int, now time.Time, limit int) ([]DashboardUpcomingExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, exam_code, start_time, duration_minutes
		 FROM exams
		 WHERE owner_id = $1 AND start_time > $2
		 ORDER BY start_time ASC LIMIT $3`,
		ownerID, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []DashboardUpcomingExam{}
	for rows.Next() {
		var e DashboardUpcomingExam
		if err := rows.Scan(&e.ID, &e.Title, &e.ExamCode, &e.StartTime, &e.DurationMinutes); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// RecentResults retrieves the exams with the most recent completed attempts,
// with participant counts and average percentage.
func (r *DashboardRepository) RecentResults(ctx context.Context, ownerID, limit int) ([]DashboardExamResult, error) {
	query := `
		SELECT
			e.id,
			e.title,
			MAX(a.submitted_at) AS last_submitted,
			COUNT(DISTINCT a.student_id),
			ROUND(AVG(a.percentage), 2)::text
		FROM exams e
		JOIN exam_attempts a ON a.exam_id = e.id AND a.status = 'completed'
		WHERE e.owner_id = $1
		GROUP BY e.id, e.title
		ORDER BY last_submitted DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []DashboardExamResult{}
	for rows.Next() {
		var res DashboardExamResult
		var avg *string
		if err := rows.Scan(&res.ID, &res.Title, &res.LastSubmittedAt, &res.ParticipantCount, &avg); err != nil {
			return nil, err
		}
		if avg != nil {
			d, err := decimal.NewFromString(*avg)
			if err != nil {
				return nil, err
			}
			res.AverageScore = &d
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
