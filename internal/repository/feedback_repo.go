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

type FeedbackRepo struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

func (r *FeedbackRepo) Create(ctx context.Context, e *models.FeedbackEvent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO feedback_events (session_id, device_hash, feedback_type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, e.SessionID, e.DeviceHash, e.FeedbackType).Scan(&e.ID, &e.CreatedAt)
}

// LastEventTime returns the most recent feedback timestamp for the
// (session, device) pair, used for the debounce check.
func (r *FeedbackRepo) LastEventTime(ctx context.Context, sessionID uuid.UUID, deviceHash string) (time.Time, bool, error) {
	var t time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at FROM feedback_events
		WHERE session_id = $1 AND device_hash = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID, deviceHash).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (r *FeedbackRepo) CountByType(ctx context.Context, sessionID uuid.UUID) (int, int, error) {
	var okCount, hardCount int
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE feedback_type = 'OK'),
			COUNT(*) FILTER (WHERE feedback_type = 'HARD')
		FROM feedback_events
		WHERE session_id = $1
	`, sessionID).Scan(&okCount, &hardCount)
	return okCount, hardCount, err
}
