package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examsecure/internal/model"
)

// RosterRepository handles the per-admin list of allowed student emails.
type RosterRepository struct {
	pool *pgxpool.Pool
}

// NewRosterRepository creates a new RosterRepository.
func NewRosterRepository(pool *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// List returns the admin's roster, newest first.
func (r *RosterRepository) List(ctx context.Context, adminID int) ([]model.AllowedStudent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, admin_id, email, created_at
		 FROM allowed_students WHERE admin_id = $1
		 ORDER BY created_at DESC`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AllowedStudent
	for rows.Next() {
		var s model.AllowedStudent
		if err := rows.Scan(&s.ID, &s.AdminID, &s.Email, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Add inserts an email into the roster. A repeat returns ErrAlreadyExists.
func (r *RosterRepository) Add(ctx context.Context, s *model.AllowedStudent) error {
	s.Email = strings.ToLower(s.Email)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO allowed_students (admin_id, email) VALUES ($1, $2)
		 RETURNING id, created_at`,
		s.AdminID, s.Email,
	).Scan(&s.ID, &s.CreatedAt)
	if IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// Delete removes a roster entry owned by adminID.
func (r *RosterRepository) Delete(ctx context.Context, id, adminID int) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM allowed_students WHERE id = $1 AND admin_id = $2`, id, adminID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsAllowed reports whether the admin lists the email.
func (r *RosterRepository) IsAllowed(ctx context.Context, adminID int, email string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM allowed_students WHERE admin_id = $1 AND email = $2)`,
		adminID, strings.ToLower(email),
	).Scan(&ok)
	return ok, err
}
