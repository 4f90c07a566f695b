package services

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"classlive-backend/internal/models"
	"classlive-backend/internal/realtime"
)

// feedbackDebounce is the minimum gap between two feedback pulses from the
// same device in the same session.
const feedbackDebounce = 3 * time.Second

// SessionService handles session-scoped actions: feedback pulses, important
// moments, hard-threshold captures and ending a session.
type SessionService struct {
	courses   CourseStore
	sessions  SessionStore
	feedback  FeedbackStore
	moments   MomentStore
	questions QuestionStore
	pub       Publisher
	queue     EnrichmentQueue
	storage   *LocalStorage
	now       func() time.Time
}

func NewSessionService(
	courses CourseStore,
	sessions SessionStore,
	feedback FeedbackStore,
	moments MomentStore,
	questions QuestionStore,
	pub Publisher,
	queue EnrichmentQueue,
	storage *LocalStorage,
) *SessionService {
	return &SessionService{
		courses:   courses,
		sessions:  sessions,
		feedback:  feedback,
		moments:   moments,
		questions: questions,
		pub:       pub,
		queue:     queue,
		storage:   storage,
		now:       time.Now,
	}
}

func (s *SessionService) Courses(ctx context.Context) ([]models.Course, error) {
	return s.courses.List(ctx)
}

// TodaySession finds or creates the session for a course on today's date.
// The (course, date) uniqueness constraint makes concurrent first requests
// converge on one row.
func (s *SessionService) TodaySession(ctx context.Context, courseCode string) (*models.Session, *models.Course, error) {
	course, err := s.courses.GetByCode(ctx, courseCode)
	if err != nil {
		return nil, nil, err
	}
	if course == nil {
		return nil, nil, &NotFoundError{Message: "Course not found"}
	}

	// Day boundary is the clock's own midnight, so a UTC+9 classroom rolls
	// over at its local midnight, not at 09:00.
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	session, err := s.sessions.GetOrCreate(ctx, course.ID, today)
	if err != nil {
		return nil, nil, err
	}
	return session, course, nil
}

// SubmitFeedback records an OK/HARD pulse and notifies the teacher group.
// A device that pulsed the same session less than the debounce window ago is
// rejected with a rate-limit error.
func (s *SessionService) SubmitFeedback(ctx context.Context, sessionID uuid.UUID, deviceHash, feedbackType string) (*models.FeedbackEvent, error) {
	if feedbackType != "OK" && feedbackType != "HARD" {
		return nil, &ValidationError{Fields: map[string]string{"feedback_type": "feedback_type must be 'OK' or 'HARD'."}}
	}

	session, err := s.sessions.GetActiveByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Message: "Session not found or inactive"}
	}

	last, ok, err := s.feedback.LastEventTime(ctx, sessionID, deviceHash)
	if err != nil {
		return nil, err
	}
	if ok && s.now().Sub(last) < feedbackDebounce {
		return nil, &RateLimitError{Message: "Too many requests."}
	}

	event := &models.FeedbackEvent{
		SessionID:    sessionID,
		DeviceHash:   deviceHash,
		FeedbackType: feedbackType,
	}
	if err := s.feedback.Create(ctx, event); err != nil {
		return nil, err
	}

	s.pub.Publish(ctx, sessionID, realtime.RoleTeacher,
		realtime.NewFeedbackEvent(feedbackType, event.CreatedAt.Format(time.RFC3339)))

	return event, nil
}

// MarkImportant creates a MANUAL moment, shows it to the student group, and
// when a capture is attached hands the moment to the enrichment queue. The
// broadcast carries the raw note only; the enriched note is persisted later
// and is visible on refetch, never re-broadcast.
func (s *SessionService) MarkImportant(ctx context.Context, sessionID uuid.UUID, note string, screenshot io.Reader, filename string) (*models.ImportantMoment, *string, error) {
	session, err := s.sessions.GetActiveByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, &NotFoundError{Message: "Session not found or inactive"}
	}

	var screenshotPath *string
	if screenshot != nil {
		relPath, err := s.storage.SaveScreenshot(screenshot, filename)
		if err != nil {
			return nil, nil, err
		}
		screenshotPath = &relPath
	}

	moment := &models.ImportantMoment{
		SessionID:      sessionID,
		Trigger:        models.TriggerManual,
		Note:           note,
		ScreenshotPath: screenshotPath,
	}
	if err := s.moments.Create(ctx, moment); err != nil {
		return nil, nil, err
	}

	captureURL := MediaURLPtr(screenshotPath)
	s.pub.Publish(ctx, sessionID, realtime.RoleStudent,
		realtime.NewImportantEvent(note, captureURL))

	if screenshotPath != nil {
		if err := s.queue.EnqueueMomentEnrichment(ctx, moment.ID, sessionID, note); err != nil {
			// The moment stands with its raw note; enrichment is best-effort.
			log.Printf("failed to enqueue enrichment for moment %s: %v", moment.ID, err)
		}
	}

	return moment, captureURL, nil
}

// HardCapture records a HARD-threshold slide capture and alerts both role
// groups.
func (s *SessionService) HardCapture(ctx context.Context, sessionID uuid.UUID, screenshot io.Reader, filename string) (*models.ImportantMoment, string, error) {
	session, err := s.sessions.GetActiveByID(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", &NotFoundError{Message: "Session not found or inactive"}
	}

	relPath, err := s.storage.SaveScreenshot(screenshot, filename)
	if err != nil {
		return nil, "", err
	}

	moment := &models.ImportantMoment{
		SessionID:      sessionID,
		Trigger:        models.TriggerHard,
		ScreenshotPath: &relPath,
	}
	if err := s.moments.Create(ctx, moment); err != nil {
		return nil, "", err
	}

	captureURL := MediaURL(relPath)
	s.pub.PublishToSession(ctx, sessionID, realtime.NewHardAlertEvent(captureURL))

	return moment, captureURL, nil
}

// EndSession deactivates the session and broadcasts session_ended to both
// groups; every hub process then closes its local connections for the session.
func (s *SessionService) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return &NotFoundError{Message: "Session not found"}
	}

	if err := s.sessions.End(ctx, sessionID); err != nil {
		return err
	}

	s.pub.PublishToSession(ctx, sessionID, realtime.NewSessionEndedEvent(sessionID))
	return nil
}

// Summary aggregates a session for the post-class review screen.
func (s *SessionService) Summary(ctx context.Context, sessionID uuid.UUID) (*models.SessionSummary, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Message: "Session not found"}
	}

	course, err := s.courses.GetByID(ctx, session.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, &NotFoundError{Message: "Course not found"}
	}

	okCount, hardCount, err := s.feedback.CountByType(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	questionCount, err := s.questions.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	moments, err := s.moments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	momentSummaries := make([]models.MomentSummary, 0, len(moments))
	for _, m := range moments {
		momentSummaries = append(momentSummaries, models.MomentSummary{
			ID:         m.ID,
			Trigger:    m.Trigger,
			Note:       m.Note,
			CaptureURL: MediaURLPtr(m.ScreenshotPath),
			CreatedAt:  m.CreatedAt,
			QuestionID: m.QuestionID,
		})
	}

	return &models.SessionSummary{
		Date: session.Date.Format("2006-01-02"),
		Course: models.CourseInfo{
			Code:      course.Code,
			Name:      course.Name,
			Professor: course.Professor,
		},
		Feedback:      models.FeedbackCounts{OK: okCount, Hard: hardCount},
		QuestionCount: questionCount,
		Moments:       momentSummaries,
	}, nil
}
