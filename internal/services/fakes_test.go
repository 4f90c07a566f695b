package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"classlive-backend/internal/models"
	"classlive-backend/internal/realtime"
)

// In-memory store fakes backing the service tests.

type fakeCourseStore struct {
	courses []models.Course
}

func (f *fakeCourseStore) List(ctx context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f *fakeCourseStore) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	for i := range f.courses {
		if f.courses[i].Code == code {
			return &f.courses[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCourseStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	for i := range f.courses {
		if f.courses[i].ID == id {
			return &f.courses[i], nil
		}
	}
	return nil, nil
}

type fakeSessionStore struct {
	sessions map[uuid.UUID]*models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*models.Session)}
}

func (f *fakeSessionStore) add(courseID uuid.UUID, active bool) *models.Session {
	s := &models.Session{ID: uuid.New(), CourseID: courseID, Date: time.Now(), IsActive: active}
	f.sessions[s.ID] = s
	return s
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeSessionStore) GetActiveByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s := f.sessions[id]
	if s == nil || !s.IsActive {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessionStore) GetOrCreate(ctx context.Context, courseID uuid.UUID, date time.Time) (*models.Session, error) {
	for _, s := range f.sessions {
		if s.CourseID == courseID && s.Date.Equal(date) {
			return s, nil
		}
	}
	s := &models.Session{ID: uuid.New(), CourseID: courseID, Date: date, IsActive: true}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessionStore) End(ctx context.Context, id uuid.UUID) error {
	if s := f.sessions[id]; s != nil {
		s.IsActive = false
	}
	return nil
}

type fakeQuestionStore struct {
	questions map[uuid.UUID]*models.Question
	likes     map[uuid.UUID]map[string]struct{}
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{
		questions: make(map[uuid.UUID]*models.Question),
		likes:     make(map[uuid.UUID]map[string]struct{}),
	}
}

func (f *fakeQuestionStore) Create(ctx context.Context, q *models.Question) error {
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	cp := *q
	f.questions[q.ID] = &cp
	return nil
}

func (f *fakeQuestionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q := f.questions[id]
	if q == nil {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuestionStore) UpdateText(ctx context.Context, id uuid.UUID, original, cleaned string) (bool, error) {
	q := f.questions[id]
	if q == nil || (q.Status != models.StatusIntent && q.Status != models.StatusTextSubmitted) {
		return false, nil
	}
	q.OriginalText = original
	q.CleanedText = &cleaned
	q.Status = models.StatusTextSubmitted
	return true, nil
}

func (f *fakeQuestionStore) UpdateAnswer(ctx context.Context, id uuid.UUID, cleaned, answer string) (bool, error) {
	q := f.questions[id]
	if q == nil || q.Status == models.StatusForwarded {
		return false, nil
	}
	q.CleanedText = &cleaned
	q.AIAnswer = &answer
	q.Status = models.StatusAIAnswered
	return true, nil
}

func (f *fakeQuestionStore) MarkForwarded(ctx context.Context, id uuid.UUID) error {
	if q := f.questions[id]; q != nil {
		q.Status = models.StatusForwarded
		q.ForwardedToProfessor = true
	}
	return nil
}

func (f *fakeQuestionStore) ListBySession(ctx context.Context, sessionID uuid.UUID, forwardedOnly bool) ([]models.Question, error) {
	var out []models.Question
	for _, q := range f.questions {
		if q.SessionID != sessionID {
			continue
		}
		if forwardedOnly && q.Status != models.StatusForwarded {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (f *fakeQuestionStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	n := 0
	for _, q := range f.questions {
		if q.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeQuestionStore) InsertLike(ctx context.Context, questionID uuid.UUID, deviceHash string) (bool, error) {
	if f.likes[questionID] == nil {
		f.likes[questionID] = make(map[string]struct{})
	}
	if _, dup := f.likes[questionID][deviceHash]; dup {
		return false, nil
	}
	f.likes[questionID][deviceHash] = struct{}{}
	return true, nil
}

func (f *fakeQuestionStore) LikeCount(ctx context.Context, questionID uuid.UUID) (int, error) {
	return len(f.likes[questionID]), nil
}

type fakeFeedbackStore struct {
	events []models.FeedbackEvent
	now    func() time.Time
}

func (f *fakeFeedbackStore) Create(ctx context.Context, e *models.FeedbackEvent) error {
	e.ID = uuid.New()
	if e.CreatedAt.IsZero() {
		if f.now != nil {
			e.CreatedAt = f.now()
		} else {
			e.CreatedAt = time.Now()
		}
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeFeedbackStore) LastEventTime(ctx context.Context, sessionID uuid.UUID, deviceHash string) (time.Time, bool, error) {
	var latest time.Time
	found := false
	for _, e := range f.events {
		if e.SessionID == sessionID && e.DeviceHash == deviceHash && e.CreatedAt.After(latest) {
			latest = e.CreatedAt
			found = true
		}
	}
	return latest, found, nil
}

func (f *fakeFeedbackStore) CountByType(ctx context.Context, sessionID uuid.UUID) (int, int, error) {
	ok, hard := 0, 0
	for _, e := range f.events {
		if e.SessionID != sessionID {
			continue
		}
		switch e.FeedbackType {
		case "OK":
			ok++
		case "HARD":
			hard++
		}
	}
	return ok, hard, nil
}

type fakeMomentStore struct {
	moments map[uuid.UUID]*models.ImportantMoment
}

func newFakeMomentStore() *fakeMomentStore {
	return &fakeMomentStore{moments: make(map[uuid.UUID]*models.ImportantMoment)}
}

func (f *fakeMomentStore) Create(ctx context.Context, m *models.ImportantMoment) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	cp := *m
	f.moments[m.ID] = &cp
	return nil
}

func (f *fakeMomentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportantMoment, error) {
	m := f.moments[id]
	if m == nil {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMomentStore) UpdateNoteIfChanged(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	m := f.moments[id]
	if m == nil || m.Note == note {
		return false, nil
	}
	m.Note = note
	return true, nil
}

func (f *fakeMomentStore) LatestQuestionCapture(ctx context.Context, questionID uuid.UUID) (string, error) {
	var latest *models.ImportantMoment
	for _, m := range f.moments {
		if m.Trigger != models.TriggerQuestion || m.QuestionID == nil || *m.QuestionID != questionID {
			continue
		}
		if m.ScreenshotPath == nil {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return "", nil
	}
	return *latest.ScreenshotPath, nil
}

func (f *fakeMomentStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.ImportantMoment, error) {
	var out []models.ImportantMoment
	for _, m := range f.moments {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	return out, nil
}

// published records one fan-out call. Role is empty for whole-session sends.
type published struct {
	sessionID uuid.UUID
	role      realtime.Role
	both      bool
	event     interface{}
}

type fakePublisher struct {
	sent []published
}

func (f *fakePublisher) Publish(ctx context.Context, sessionID uuid.UUID, role realtime.Role, event interface{}) {
	f.sent = append(f.sent, published{sessionID: sessionID, role: role, event: event})
}

func (f *fakePublisher) PublishToSession(ctx context.Context, sessionID uuid.UUID, event interface{}) {
	f.sent = append(f.sent, published{sessionID: sessionID, both: true, event: event})
}

// fakeAI echoes deterministic transformations so tests can assert precedence.
type fakeAI struct{}

func (fakeAI) CleanQuestion(ctx context.Context, text, capturePath string) string {
	return "cleaned: " + strings.TrimSpace(text)
}

func (fakeAI) AnswerQuestion(ctx context.Context, text, capturePath string) string {
	return "answer: " + text
}

type queuedJob struct {
	momentID  uuid.UUID
	sessionID uuid.UUID
	rawNote   string
}

type fakeQueue struct {
	jobs []queuedJob
	err  error
}

func (f *fakeQueue) EnqueueMomentEnrichment(ctx context.Context, momentID, sessionID uuid.UUID, rawNote string) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, queuedJob{momentID: momentID, sessionID: sessionID, rawNote: rawNote})
	return nil
}
