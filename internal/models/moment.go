package models

import (
	"time"

	"github.com/google/uuid"
)

// Moment trigger kinds.
const (
	TriggerManual   = "MANUAL"   // professor marked important
	TriggerQuestion = "QUESTION" // capture attached to a question
	TriggerHard     = "HARD"     // hard-threshold capture
)

// ImportantMoment is a captured point of interest in a session. Its note may
// be rewritten once more, asynchronously, by the enrichment worker.
type ImportantMoment struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	Trigger        string     `json:"trigger"`
	QuestionID     *uuid.UUID `json:"question_id"`
	Note           string     `json:"note"`
	ScreenshotPath *string    `json:"screenshot_path"`
	CreatedAt      time.Time  `json:"created_at"`
}
