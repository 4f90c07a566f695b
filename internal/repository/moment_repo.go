package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classlive-backend/internal/models"
)

type MomentRepo struct {
	pool *pgxpool.Pool
}

func NewMomentRepo(pool *pgxpool.Pool) *MomentRepo {
	return &MomentRepo{pool: pool}
}

func (r *MomentRepo) Create(ctx context.Context, m *models.ImportantMoment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO important_moments (session_id, trigger, question_id, note, screenshot_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.SessionID, m.Trigger, m.QuestionID, m.Note, m.ScreenshotPath).Scan(&m.ID, &m.CreatedAt)
}

func (r *MomentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportantMoment, error) {
	var m models.ImportantMoment
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, trigger, question_id, note, screenshot_path, created_at
		FROM important_moments WHERE id = $1
	`, id).Scan(&m.ID, &m.SessionID, &m.Trigger, &m.QuestionID, &m.Note, &m.ScreenshotPath, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateNoteIfChanged writes the note only when it differs from the stored
// value, so a redelivered enrichment job never races another updater into a
// redundant write.
func (r *MomentRepo) UpdateNoteIfChanged(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE important_moments
		SET note = $2
		WHERE id = $1 AND note IS DISTINCT FROM $2
	`, id, note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// LatestQuestionCapture returns the newest QUESTION-trigger screenshot path
// for a question, or "" when there is none.
func (r *MomentRepo) LatestQuestionCapture(ctx context.Context, questionID uuid.UUID) (string, error) {
	var path string
	err := r.pool.QueryRow(ctx, `
		SELECT screenshot_path FROM important_moments
		WHERE question_id = $1 AND trigger = 'QUESTION' AND screenshot_path IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, questionID).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (r *MomentRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.ImportantMoment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, trigger, question_id, note, screenshot_path, created_at
		FROM important_moments
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moments []models.ImportantMoment
	for rows.Next() {
		var m models.ImportantMoment
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Trigger, &m.QuestionID, &m.Note, &m.ScreenshotPath, &m.CreatedAt); err != nil {
			return nil, err
		}
		moments = append(moments, m)
	}
	return moments, rows.Err()
}
