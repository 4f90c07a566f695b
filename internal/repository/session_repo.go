package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classlive-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// GetOrCreate returns the session for (course, date), creating it on first
// access. The no-op DO UPDATE makes the insert return the existing row under
// the uniqueness constraint.
func (r *SessionRepo) GetOrCreate(ctx context.Context, courseID uuid.UUID, date time.Time) (*models.Session, error) {
	var s models.Session
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (course_id, session_date)
		VALUES ($1, $2)
		ON CONFLICT (course_id, session_date)
		DO UPDATE SET course_id = EXCLUDED.course_id
		RETURNING id, course_id, session_date, is_active, created_at
	`, courseID, date).Scan(&s.ID, &s.CourseID, &s.Date, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return r.get(ctx, `
		SELECT id, course_id, session_date, is_active, created_at
		FROM sessions WHERE id = $1
	`, id)
}

func (r *SessionRepo) GetActiveByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return r.get(ctx, `
		SELECT id, course_id, session_date, is_active, created_at
		FROM sessions WHERE id = $1 AND is_active = TRUE
	`, id)
}

func (r *SessionRepo) End(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_active = FALSE WHERE id = $1
	`, id)
	return err
}

func (r *SessionRepo) get(ctx context.Context, query string, arg interface{}) (*models.Session, error) {
	var s models.Session
	err := r.pool.QueryRow(ctx, query, arg).Scan(&s.ID, &s.CourseID, &s.Date, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
