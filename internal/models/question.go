package models

import (
	"time"

	"github.com/google/uuid"
)

// Question lifecycle. Transitions only move forward, FORWARDED is terminal.
type QuestionStatus string

const (
	StatusIntent        QuestionStatus = "INTENT"
	StatusTextSubmitted QuestionStatus = "TEXT_SUBMITTED"
	StatusAIAnswered    QuestionStatus = "AI_ANSWERED"
	StatusForwarded     QuestionStatus = "FORWARDED"
)

type Question struct {
	ID                   uuid.UUID      `json:"id"`
	SessionID            uuid.UUID      `json:"session_id"`
	DeviceHash           string         `json:"device_hash"`
	OriginalText         string         `json:"original_text"`
	CleanedText          *string        `json:"cleaned_text"`
	AIAnswer             *string        `json:"ai_answer"`
	ForwardedToProfessor bool           `json:"forwarded_to_professor"`
	Status               QuestionStatus `json:"status"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// QuestionLike records that an anonymous device liked a question. At most one
// row per (question, device); a duplicate like is a no-op.
type QuestionLike struct {
	QuestionID uuid.UUID `json:"question_id"`
	DeviceHash string    `json:"device_hash"`
	CreatedAt  time.Time `json:"created_at"`
}
