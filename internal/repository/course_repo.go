package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classlive-backend/internal/models"
)

type CourseRepo struct {
	pool *pgxpool.Pool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) List(ctx context.Context) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, professor, time_slot, created_at
		FROM courses
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Professor, &c.TimeSlot, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepo) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	return r.get(ctx, `
		SELECT id, code, name, professor, time_slot, created_at
		FROM courses WHERE code = $1
	`, code)
}

func (r *CourseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return r.get(ctx, `
		SELECT id, code, name, professor, time_slot, created_at
		FROM courses WHERE id = $1
	`, id)
}

func (r *CourseRepo) get(ctx context.Context, query string, arg interface{}) (*models.Course, error) {
	var c models.Course
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.Code, &c.Name, &c.Professor, &c.TimeSlot, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
