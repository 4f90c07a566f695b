package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const enrichmentQueue = "queue:moment-enrichment"

// EnrichmentJob augments an important moment's note with an AI summary of its
// slide capture. The queue is at-least-once: the handler must stay safe when
// run more than once for the same moment.
type EnrichmentJob struct {
	MomentID   uuid.UUID `json:"moment_id"`
	SessionID  uuid.UUID `json:"session_id"`
	RawNote    string    `json:"raw_note"`
	RetryCount int       `json:"retry_count"`
}

// Queue submits enrichment jobs onto the Redis list consumed by the pool.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) EnqueueMomentEnrichment(ctx context.Context, momentID, sessionID uuid.UUID, rawNote string) error {
	job := EnrichmentJob{MomentID: momentID, SessionID: sessionID, RawNote: rawNote}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, enrichmentQueue, data).Err()
}
