package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classlive-backend/internal/services"
)

type QuestionHandler struct {
	svc *services.QuestionService
}

func NewQuestionHandler(svc *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{svc: svc}
}

// StartIntent registers that a student is about to ask a question. The
// returned id is what the client uses for the capture/text/answer/forward
// calls that follow.
func (h *QuestionHandler) StartIntent(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	q, err := h.svc.StartIntent(r.Context(), sessionID, deviceHash(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"question_id": q.ID,
		"created_at":  q.CreatedAt,
	})
}

func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	forwardedOnly := r.URL.Query().Get("forwarded_only") == "true"

	questions, err := h.svc.ListBySession(r.Context(), sessionID, forwardedOnly)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (h *QuestionHandler) UploadCapture(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}

	_, screenshot, filename, err := parseMomentForm(w, r, true)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	q, captureURL, err := h.svc.UploadCapture(r.Context(), questionID, screenshot, filename)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"question_id": q.ID,
		"capture_url": captureURL,
	})
}

func (h *QuestionHandler) SubmitText(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}

	var req struct {
		OriginalText string `json:"original_text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	q, captureURL, err := h.svc.SubmitText(r.Context(), questionID, deviceHash(r), req.OriginalText)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            q.ID,
		"original_text": q.OriginalText,
		"cleaned_text":  q.CleanedText,
		"capture_url":   captureURL,
	})
}

func (h *QuestionHandler) RequestAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}

	var req struct {
		CleanedText string `json:"cleaned_text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	q, captureURL, err := h.svc.RequestAnswer(r.Context(), questionID, deviceHash(r), req.CleanedText)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           q.ID,
		"cleaned_text": q.CleanedText,
		"ai_answer":    q.AIAnswer,
		"capture_url":  captureURL,
	})
}

func (h *QuestionHandler) Forward(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}

	if err := h.svc.Forward(r.Context(), questionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *QuestionHandler) Like(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}

	count, err := h.svc.Like(r.Context(), questionID, deviceHash(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"question_id": questionID,
		"like_count":  count,
	})
}
