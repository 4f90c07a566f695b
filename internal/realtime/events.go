package realtime

import (
	"github.com/google/uuid"
)

// EventType is the closed set of server→client frame names. Every frame is a
// flat JSON object carrying an "event" field plus event-specific payload.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventPong               EventType = "pong"
	EventFeedback           EventType = "feedback"
	EventQuestionIntent     EventType = "question_intent"
	EventNewQuestion        EventType = "new_question"
	EventQuestionCapture    EventType = "question_capture"
	EventQuestionLikeUpdate EventType = "question_like_update"
	EventImportant          EventType = "important"
	EventHardAlert          EventType = "hard_alert"
	EventTeacherPresence    EventType = "teacher_presence"
	EventSessionEnded       EventType = "session_ended"
)

type ConnectedEvent struct {
	Event         EventType `json:"event"`
	SessionID     uuid.UUID `json:"session_id"`
	Role          Role      `json:"role"`
	TeacherOnline bool      `json:"teacher_online"`
}

func NewConnectedEvent(sessionID uuid.UUID, role Role, teacherOnline bool) ConnectedEvent {
	return ConnectedEvent{Event: EventConnected, SessionID: sessionID, Role: role, TeacherOnline: teacherOnline}
}

type PongEvent struct {
	Event EventType `json:"event"`
}

func NewPongEvent() PongEvent {
	return PongEvent{Event: EventPong}
}

type FeedbackEvent struct {
	Event        EventType `json:"event"`
	FeedbackType string    `json:"feedback_type"`
	CreatedAt    string    `json:"created_at"`
}

func NewFeedbackEvent(feedbackType, createdAt string) FeedbackEvent {
	return FeedbackEvent{Event: EventFeedback, FeedbackType: feedbackType, CreatedAt: createdAt}
}

type QuestionIntentEvent struct {
	Event      EventType `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
	CreatedAt  string    `json:"created_at"`
}

func NewQuestionIntentEvent(questionID uuid.UUID, createdAt string) QuestionIntentEvent {
	return QuestionIntentEvent{Event: EventQuestionIntent, QuestionID: questionID, CreatedAt: createdAt}
}

type NewQuestionEvent struct {
	Event      EventType `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	AIAnswer   *string   `json:"ai_answer"`
	CaptureURL *string   `json:"capture_url"`
}

func NewNewQuestionEvent(questionID uuid.UUID, text string, aiAnswer, captureURL *string) NewQuestionEvent {
	return NewQuestionEvent{Event: EventNewQuestion, QuestionID: questionID, Text: text, AIAnswer: aiAnswer, CaptureURL: captureURL}
}

type QuestionCaptureEvent struct {
	Event      EventType `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
	CaptureURL string    `json:"capture_url"`
}

func NewQuestionCaptureEvent(questionID uuid.UUID, captureURL string) QuestionCaptureEvent {
	return QuestionCaptureEvent{Event: EventQuestionCapture, QuestionID: questionID, CaptureURL: captureURL}
}

type QuestionLikeUpdateEvent struct {
	Event      EventType `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
	LikeCount  int       `json:"like_count"`
}

func NewQuestionLikeUpdateEvent(questionID uuid.UUID, likeCount int) QuestionLikeUpdateEvent {
	return QuestionLikeUpdateEvent{Event: EventQuestionLikeUpdate, QuestionID: questionID, LikeCount: likeCount}
}

type ImportantEvent struct {
	Event      EventType `json:"event"`
	Note       string    `json:"note"`
	CaptureURL *string   `json:"capture_url"`
}

func NewImportantEvent(note string, captureURL *string) ImportantEvent {
	return ImportantEvent{Event: EventImportant, Note: note, CaptureURL: captureURL}
}

type HardAlertEvent struct {
	Event      EventType `json:"event"`
	CaptureURL string    `json:"capture_url"`
}

func NewHardAlertEvent(captureURL string) HardAlertEvent {
	return HardAlertEvent{Event: EventHardAlert, CaptureURL: captureURL}
}

type TeacherPresenceEvent struct {
	Event         EventType `json:"event"`
	TeacherOnline bool      `json:"teacher_online"`
}

func NewTeacherPresenceEvent(online bool) TeacherPresenceEvent {
	return TeacherPresenceEvent{Event: EventTeacherPresence, TeacherOnline: online}
}

type SessionEndedEvent struct {
	Event     EventType `json:"event"`
	SessionID uuid.UUID `json:"session_id"`
}

func NewSessionEndedEvent(sessionID uuid.UUID) SessionEndedEvent {
	return SessionEndedEvent{Event: EventSessionEnded, SessionID: sessionID}
}
