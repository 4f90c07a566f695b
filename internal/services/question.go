package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"classlive-backend/internal/models"
	"classlive-backend/internal/realtime"
)

// QuestionService drives the question lifecycle state machine:
// INTENT → TEXT_SUBMITTED → AI_ANSWERED → FORWARDED, forward-only.
// Every broadcast follows the successful persistence write it announces.
type QuestionService struct {
	questions QuestionStore
	moments   MomentStore
	sessions  SessionStore
	ai        QuestionAI
	pub       Publisher
	storage   *LocalStorage
}

func NewQuestionService(
	questions QuestionStore,
	moments MomentStore,
	sessions SessionStore,
	ai QuestionAI,
	pub Publisher,
	storage *LocalStorage,
) *QuestionService {
	return &QuestionService{
		questions: questions,
		moments:   moments,
		sessions:  sessions,
		ai:        ai,
		pub:       pub,
		storage:   storage,
	}
}

// StartIntent creates an empty question for a student that pressed the "ask"
// button and notifies the teacher group. The returned id drives all later
// question calls.
func (s *QuestionService) StartIntent(ctx context.Context, sessionID uuid.UUID, deviceHash string) (*models.Question, error) {
	session, err := s.sessions.GetActiveByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Message: "Session not found or inactive"}
	}

	q := &models.Question{
		SessionID:  sessionID,
		DeviceHash: deviceHash,
		Status:     models.StatusIntent,
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, err
	}

	s.pub.Publish(ctx, sessionID, realtime.RoleTeacher,
		realtime.NewQuestionIntentEvent(q.ID, q.CreatedAt.Format(time.RFC3339)))

	return q, nil
}

// UploadCapture stores the professor's slide capture for a question as a
// QUESTION-trigger moment and shows it to the student group.
func (s *QuestionService) UploadCapture(ctx context.Context, questionID uuid.UUID, screenshot io.Reader, filename string) (*models.Question, string, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, "", err
	}
	if q == nil {
		return nil, "", &NotFoundError{Message: "Question not found"}
	}

	relPath, err := s.storage.SaveScreenshot(screenshot, filename)
	if err != nil {
		return nil, "", err
	}

	moment := &models.ImportantMoment{
		SessionID:      q.SessionID,
		Trigger:        models.TriggerQuestion,
		QuestionID:     &q.ID,
		ScreenshotPath: &relPath,
	}
	if err := s.moments.Create(ctx, moment); err != nil {
		return nil, "", err
	}

	captureURL := MediaURL(relPath)
	s.pub.Publish(ctx, q.SessionID, realtime.RoleStudent,
		realtime.NewQuestionCaptureEvent(q.ID, captureURL))

	return q, captureURL, nil
}

// SubmitText records the student's question text and its cleaned version.
// Only the creating device may submit, and a question that already reached
// AI_ANSWERED or FORWARDED never regresses.
func (s *QuestionService) SubmitText(ctx context.Context, questionID uuid.UUID, deviceHash, originalText string) (*models.Question, *string, error) {
	originalText = strings.TrimSpace(originalText)
	if originalText == "" {
		return nil, nil, &ValidationError{Fields: map[string]string{"original_text": "original_text is required."}}
	}

	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	if q == nil {
		return nil, nil, &NotFoundError{Message: "Question not found"}
	}
	if q.DeviceHash != deviceHash {
		return nil, nil, &ForbiddenError{Message: "Invalid device."}
	}
	if q.Status == models.StatusAIAnswered || q.Status == models.StatusForwarded {
		return nil, nil, &ConflictError{Message: "Question text can no longer be changed."}
	}

	capturePath, err := s.moments.LatestQuestionCapture(ctx, q.ID)
	if err != nil {
		return nil, nil, err
	}

	cleaned := s.ai.CleanQuestion(ctx, originalText, capturePath)

	updated, err := s.questions.UpdateText(ctx, q.ID, originalText, cleaned)
	if err != nil {
		return nil, nil, err
	}
	if !updated {
		return nil, nil, &ConflictError{Message: "Question text can no longer be changed."}
	}

	q.OriginalText = originalText
	q.CleanedText = &cleaned
	q.Status = models.StatusTextSubmitted

	return q, mediaURLForPath(capturePath), nil
}

// RequestAnswer asks the AI collaborator for an answer, optionally taking a
// student-edited version of the cleaned text. No broadcast: the answer is only
// shared once the student forwards the question.
func (s *QuestionService) RequestAnswer(ctx context.Context, questionID uuid.UUID, deviceHash, overrideCleaned string) (*models.Question, *string, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	if q == nil {
		return nil, nil, &NotFoundError{Message: "Question not found"}
	}
	if q.DeviceHash != deviceHash {
		return nil, nil, &ForbiddenError{Message: "Invalid device."}
	}
	if q.Status == models.StatusForwarded {
		return nil, nil, &ConflictError{Message: "Question is already forwarded."}
	}

	cleanedForAnswer := strings.TrimSpace(overrideCleaned)
	if cleanedForAnswer == "" {
		if q.CleanedText != nil && *q.CleanedText != "" {
			cleanedForAnswer = *q.CleanedText
		} else {
			// Answering straight from INTENT still works off the raw text.
			cleanedForAnswer = q.OriginalText
		}
	}

	capturePath, err := s.moments.LatestQuestionCapture(ctx, q.ID)
	if err != nil {
		return nil, nil, err
	}

	answer := s.ai.AnswerQuestion(ctx, cleanedForAnswer, capturePath)

	updated, err := s.questions.UpdateAnswer(ctx, q.ID, cleanedForAnswer, answer)
	if err != nil {
		return nil, nil, err
	}
	if !updated {
		return nil, nil, &ConflictError{Message: "Question is already forwarded."}
	}

	q.CleanedText = &cleanedForAnswer
	q.AIAnswer = &answer
	q.Status = models.StatusAIAnswered

	return q, mediaURLForPath(capturePath), nil
}

// Forward hands the question to the professor and announces it to both role
// groups. Forwarding is idempotent at the message level: re-forwarding an
// already forwarded question re-sends the broadcast without error. Any actor
// may forward; there is no device check on this transition.
func (s *QuestionService) Forward(ctx context.Context, questionID uuid.UUID) error {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	if q == nil {
		return &NotFoundError{Message: "Question not found"}
	}

	if err := s.questions.MarkForwarded(ctx, q.ID); err != nil {
		return err
	}

	capturePath, err := s.moments.LatestQuestionCapture(ctx, q.ID)
	if err != nil {
		return err
	}

	text := q.OriginalText
	if q.CleanedText != nil && *q.CleanedText != "" {
		text = *q.CleanedText
	}

	s.pub.PublishToSession(ctx, q.SessionID,
		realtime.NewNewQuestionEvent(q.ID, text, q.AIAnswer, mediaURLForPath(capturePath)))

	return nil
}

// Like records a device's interest in a question. Only a newly created like
// row triggers a broadcast; a duplicate like leaves the count unchanged and
// stays silent.
func (s *QuestionService) Like(ctx context.Context, questionID uuid.UUID, deviceHash string) (int, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return 0, err
	}
	if q == nil {
		return 0, &NotFoundError{Message: "Question not found"}
	}

	created, err := s.questions.InsertLike(ctx, q.ID, deviceHash)
	if err != nil {
		return 0, err
	}

	count, err := s.questions.LikeCount(ctx, q.ID)
	if err != nil {
		return 0, err
	}

	if created {
		s.pub.PublishToSession(ctx, q.SessionID,
			realtime.NewQuestionLikeUpdateEvent(q.ID, count))
	}

	return count, nil
}

// ListBySession returns a session's questions in creation order, optionally
// restricted to the ones forwarded to the professor.
func (s *QuestionService) ListBySession(ctx context.Context, sessionID uuid.UUID, forwardedOnly bool) ([]models.Question, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Message: "Session not found"}
	}
	return s.questions.ListBySession(ctx, sessionID, forwardedOnly)
}

func mediaURLForPath(relPath string) *string {
	if relPath == "" {
		return nil
	}
	u := MediaURL(relPath)
	return &u
}
