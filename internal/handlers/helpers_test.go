package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"classlive-backend/internal/models"
	"classlive-backend/internal/services"
)

func TestDeviceHash(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := deviceHash(req); got != "anonymous" {
		t.Errorf("Expected anonymous without header, got %q", got)
	}

	req.Header.Set("X-Device-Hash", "abc123")
	if got := deviceHash(req); got != "abc123" {
		t.Errorf("Expected abc123, got %q", got)
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedStr  string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"x": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &services.NotFoundError{Message: "Question not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", &services.ForbiddenError{Message: "Invalid device."}, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", &services.ConflictError{Message: "Question is already forwarded."}, http.StatusConflict, "CONFLICT"},
		{"rate limited", &services.RateLimitError{Message: "Too many requests."}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set("X-Request-ID", "req-42")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d", tc.expectedCode, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to parse error body: %v", err)
			}
			if resp.Error.Code != tc.expectedStr {
				t.Errorf("Expected code %q, got %q", tc.expectedStr, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-42" {
				t.Errorf("Expected request id echoed, got %q", resp.Error.RequestID)
			}
		})
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandlersRejectMalformedIDs(t *testing.T) {
	sessionHandler := NewSessionHandler(nil)
	questionHandler := NewQuestionHandler(nil)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"feedback", sessionHandler.SubmitFeedback},
		{"summary", sessionHandler.Summary},
		{"end", sessionHandler.EndSession},
		{"intent", questionHandler.StartIntent},
		{"like", questionHandler.Like},
		{"forward", questionHandler.Forward},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = withURLParam(req, "id", "not-a-uuid")
			rr := httptest.NewRecorder()

			tc.handler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for malformed id, got %d", rr.Code)
			}
		})
	}
}
