package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classlive-backend/internal/models"
	"classlive-backend/internal/realtime"
)

// Persistence capabilities the lifecycle services need. Implemented by the
// pgx repositories; backed by fakes in tests. A missing row is (nil, nil).

type CourseStore interface {
	List(ctx context.Context) ([]models.Course, error)
	GetByCode(ctx context.Context, code string) (*models.Course, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetActiveByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetOrCreate(ctx context.Context, courseID uuid.UUID, date time.Time) (*models.Session, error)
	End(ctx context.Context, id uuid.UUID) error
}

type QuestionStore interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	// UpdateText and UpdateAnswer report false when the status guard in the
	// database rejected the transition.
	UpdateText(ctx context.Context, id uuid.UUID, original, cleaned string) (bool, error)
	UpdateAnswer(ctx context.Context, id uuid.UUID, cleaned, answer string) (bool, error)
	MarkForwarded(ctx context.Context, id uuid.UUID) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, forwardedOnly bool) ([]models.Question, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
	// InsertLike reports whether a new like row was created.
	InsertLike(ctx context.Context, questionID uuid.UUID, deviceHash string) (bool, error)
	LikeCount(ctx context.Context, questionID uuid.UUID) (int, error)
}

type FeedbackStore interface {
	Create(ctx context.Context, e *models.FeedbackEvent) error
	// LastEventTime returns the most recent event timestamp for the
	// (session, device) pair; ok is false when there is none.
	LastEventTime(ctx context.Context, sessionID uuid.UUID, deviceHash string) (time.Time, bool, error)
	CountByType(ctx context.Context, sessionID uuid.UUID) (ok int, hard int, err error)
}

type MomentStore interface {
	Create(ctx context.Context, m *models.ImportantMoment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportantMoment, error)
	// UpdateNoteIfChanged reports whether a write happened.
	UpdateNoteIfChanged(ctx context.Context, id uuid.UUID, note string) (bool, error)
	// LatestQuestionCapture returns the newest QUESTION-trigger screenshot
	// path for a question, or "" when none exists.
	LatestQuestionCapture(ctx context.Context, questionID uuid.UUID) (string, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.ImportantMoment, error)
}

// Publisher fans an event out to session groups. Implemented by the realtime
// hub; publish failures degrade inside the hub and never reach callers, so a
// succeeded persistence write is never rolled back by a broadcast problem.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, role realtime.Role, event interface{})
	PublishToSession(ctx context.Context, sessionID uuid.UUID, event interface{})
}

// QuestionAI is the synchronous AI collaborator surface of the question
// lifecycle. Implementations apply fallbacks internally and never fail.
type QuestionAI interface {
	CleanQuestion(ctx context.Context, text, capturePath string) string
	AnswerQuestion(ctx context.Context, text, capturePath string) string
}

// EnrichmentQueue submits asynchronous note-enrichment jobs.
type EnrichmentQueue interface {
	EnqueueMomentEnrichment(ctx context.Context, momentID, sessionID uuid.UUID, rawNote string) error
}
