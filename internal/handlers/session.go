package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classlive-backend/internal/services"
)

const maxScreenshotBytes = 10 << 20 // 10MB

type SessionHandler struct {
	svc *services.SessionService
}

func NewSessionHandler(svc *services.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.svc.Courses(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

// TodaySession finds or creates the session for a course on today's date.
// Both roles call this before opening their WebSocket.
func (h *SessionHandler) TodaySession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	session, course, err := h.svc.TodaySession(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"course":  course,
	})
}

func (h *SessionHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	var req struct {
		FeedbackType string `json:"feedback_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if _, err := h.svc.SubmitFeedback(r.Context(), sessionID, deviceHash(r), req.FeedbackType); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SessionHandler) MarkImportant(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	note, screenshot, filename, err := parseMomentForm(w, r, false)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	moment, captureURL, err := h.svc.MarkImportant(r.Context(), sessionID, note, screenshot, filename)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          moment.ID,
		"note":        moment.Note,
		"capture_url": captureURL,
	})
}

func (h *SessionHandler) HardThresholdCapture(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	_, screenshot, filename, err := parseMomentForm(w, r, true)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	moment, captureURL, err := h.svc.HardCapture(r.Context(), sessionID, screenshot, filename)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          moment.ID,
		"capture_url": captureURL,
	})
}

func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	if err := h.svc.EndSession(r.Context(), sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	summary, err := h.svc.Summary(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// parseMomentForm reads the multipart body shared by the moment endpoints:
// an optional note plus a screenshot that may or may not be required.
// Returned readers must be consumed before the request body is closed.
func parseMomentForm(w http.ResponseWriter, r *http.Request, screenshotRequired bool) (note string, screenshot io.Reader, filename string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScreenshotBytes)
	if err := r.ParseMultipartForm(maxScreenshotBytes); err != nil {
		return "", nil, "", errors.New("invalid multipart form")
	}

	note = r.FormValue("note")

	file, header, err := r.FormFile("screenshot")
	if err != nil {
		if screenshotRequired {
			return "", nil, "", errors.New("screenshot is required.")
		}
		return note, nil, "", nil
	}
	return note, file, header.Filename, nil
}
