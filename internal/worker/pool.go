package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"classlive-backend/internal/models"
)

const maxJobRetries = 3

type MomentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportantMoment, error)
	UpdateNoteIfChanged(ctx context.Context, id uuid.UUID, note string) (bool, error)
}

type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

type CourseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

// ImageSummarizer never fails: it returns "" when the model is unavailable.
type ImageSummarizer interface {
	SummarizeImage(ctx context.Context, capturePath, subject string) string
}

// Pool consumes the enrichment queue. The enriched note is persisted only; it
// is never re-broadcast, so clients refetch the moment to see it.
type Pool struct {
	redis       *redis.Client
	moments     MomentStore
	sessions    SessionStore
	courses     CourseStore
	ai          ImageSummarizer
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	moments MomentStore,
	sessions SessionStore,
	courses CourseStore,
	ai ImageSummarizer,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		moments:     moments,
		sessions:    sessions,
		courses:     courses,
		ai:          ai,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d enrichment worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, enrichmentQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job EnrichmentJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// One worker at a time per moment, across all processes.
		lockKey := fmt.Sprintf("moment_lock:%s", job.MomentID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 5*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		log.Printf("Worker %d: enriching moment %s", id, job.MomentID)

		if err := p.processMoment(ctx, &job); err != nil {
			p.handleFailure(&job, err)
		}

		p.redis.Del(ctx, lockKey)
	}
}

// processMoment loads the moment, summarizes its capture and persists the
// combined note when it changed. Safe to run more than once: the conditional
// write turns a redelivery into a no-op.
func (p *Pool) processMoment(ctx context.Context, job *EnrichmentJob) error {
	moment, err := p.moments.GetByID(ctx, job.MomentID)
	if err != nil {
		return fmt.Errorf("failed to load moment: %w", err)
	}
	if moment == nil {
		log.Printf("Moment %s no longer exists, dropping job", job.MomentID)
		return nil
	}

	if moment.ScreenshotPath == nil || *moment.ScreenshotPath == "" {
		// Nothing to summarize; the raw note stands.
		return nil
	}

	summary := p.ai.SummarizeImage(ctx, *moment.ScreenshotPath, p.subjectHint(ctx, job.SessionID))

	finalNote := CombineNote(job.RawNote, summary)
	if finalNote == moment.Note {
		return nil
	}

	if _, err := p.moments.UpdateNoteIfChanged(ctx, moment.ID, finalNote); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

// subjectHint resolves the course code for the session. Best-effort: any
// lookup problem just means the summarizer runs without a subject.
func (p *Pool) subjectHint(ctx context.Context, sessionID uuid.UUID) string {
	session, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil || session == nil {
		return ""
	}
	course, err := p.courses.GetByID(ctx, session.CourseID)
	if err != nil || course == nil {
		return ""
	}
	code := course.Code
	if len(code) > 7 {
		code = code[:7]
	}
	return code
}

// CombineNote merges the note captured at creation time with the AI summary:
// both joined by a separator, summary alone when the note was empty, the raw
// note unchanged when summarization produced nothing.
func CombineNote(rawNote, summary string) string {
	switch {
	case rawNote != "" && summary != "":
		return rawNote + " | " + summary
	case summary != "":
		return summary
	default:
		return rawNote
	}
}

func (p *Pool) handleFailure(job *EnrichmentJob, err error) {
	job.RetryCount++
	if job.RetryCount < maxJobRetries {
		log.Printf("Enrichment for moment %s failed (attempt %d): %v, retrying", job.MomentID, job.RetryCount, err)

		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), enrichmentQueue, jobBytes)
		})
		return
	}

	// The moment keeps its raw note; enrichment never blocks anything else.
	log.Printf("Enrichment for moment %s failed permanently: %v", job.MomentID, err)
}
