package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classlive-backend/internal/models"
)

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func (r *QuestionRepo) Create(ctx context.Context, q *models.Question) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO questions (session_id, device_hash, original_text, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, q.SessionID, q.DeviceHash, q.OriginalText, q.Status).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	var q models.Question
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, device_hash, original_text, cleaned_text, ai_answer,
		       forwarded_to_professor, status, created_at, updated_at
		FROM questions WHERE id = $1
	`, id).Scan(
		&q.ID, &q.SessionID, &q.DeviceHash, &q.OriginalText, &q.CleanedText, &q.AIAnswer,
		&q.ForwardedToProfessor, &q.Status, &q.CreatedAt, &q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// UpdateText stores the original and cleaned text and moves the question to
// TEXT_SUBMITTED. The status guard makes the transition monotonic under
// concurrent calls: a question past TEXT_SUBMITTED is left untouched.
func (r *QuestionRepo) UpdateText(ctx context.Context, id uuid.UUID, original, cleaned string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE questions
		SET original_text = $2, cleaned_text = $3, status = 'TEXT_SUBMITTED', updated_at = NOW()
		WHERE id = $1 AND status IN ('INTENT', 'TEXT_SUBMITTED')
	`, id, original, cleaned)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAnswer persists the cleaned text and AI answer and moves the question
// to AI_ANSWERED. FORWARDED is terminal and never regresses.
func (r *QuestionRepo) UpdateAnswer(ctx context.Context, id uuid.UUID, cleaned, answer string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE questions
		SET cleaned_text = $2, ai_answer = $3, status = 'AI_ANSWERED', updated_at = NOW()
		WHERE id = $1 AND status <> 'FORWARDED'
	`, id, cleaned, answer)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkForwarded is idempotent: forwarding an already forwarded question is
// not an error.
func (r *QuestionRepo) MarkForwarded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE questions
		SET forwarded_to_professor = TRUE, status = 'FORWARDED', updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *QuestionRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, forwardedOnly bool) ([]models.Question, error) {
	query := `
		SELECT id, session_id, device_hash, original_text, cleaned_text, ai_answer,
		       forwarded_to_professor, status, created_at, updated_at
		FROM questions
		WHERE session_id = $1
	`
	if forwardedOnly {
		query += ` AND forwarded_to_professor = TRUE`
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(
			&q.ID, &q.SessionID, &q.DeviceHash, &q.OriginalText, &q.CleanedText, &q.AIAnswer,
			&q.ForwardedToProfessor, &q.Status, &q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *QuestionRepo) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM questions WHERE session_id = $1
	`, sessionID).Scan(&count)
	return count, err
}

// InsertLike creates the (question, device) like row if it does not exist and
// reports whether a new row was created. A retried like is a silent no-op.
func (r *QuestionRepo) InsertLike(ctx context.Context, questionID uuid.UUID, deviceHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO question_likes (question_id, device_hash)
		VALUES ($1, $2)
		ON CONFLICT (question_id, device_hash) DO NOTHING
	`, questionID, deviceHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuestionRepo) LikeCount(ctx context.Context, questionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM question_likes WHERE question_id = $1
	`, questionID).Scan(&count)
	return count, err
}
