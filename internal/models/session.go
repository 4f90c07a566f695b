package models

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Professor string    `json:"professor"`
	TimeSlot  string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one classroom instance: one course on one date. Connections,
// questions, feedback and moments all hang off a session.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	Date      time.Time `json:"date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedbackEvent struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	DeviceHash   string    `json:"device_hash"`
	FeedbackType string    `json:"feedback_type"` // "OK" | "HARD"
	CreatedAt    time.Time `json:"created_at"`
}

type SessionSummary struct {
	Date          string          `json:"date"`
	Course        CourseInfo      `json:"course"`
	Feedback      FeedbackCounts  `json:"feedback"`
	QuestionCount int             `json:"question_count"`
	Moments       []MomentSummary `json:"important_moments"`
}

type CourseInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Professor string `json:"professor"`
}

type FeedbackCounts struct {
	OK   int `json:"ok"`
	Hard int `json:"hard"`
}

type MomentSummary struct {
	ID         uuid.UUID  `json:"id"`
	Trigger    string     `json:"trigger"`
	Note       string     `json:"note"`
	CaptureURL *string    `json:"capture_url"`
	CreatedAt  time.Time  `json:"created_at"`
	QuestionID *uuid.UUID `json:"question_id"`
}
