package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"classlive-backend/internal/handlers"
	"classlive-backend/internal/middleware"
	"classlive-backend/internal/realtime"
)

func New(
	sessionHandler *handlers.SessionHandler,
	questionHandler *handlers.QuestionHandler,
	hub *realtime.Hub,
	frontendURL string,
	storagePath string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Command rate limiter (60 req/min per device)
	commandLimiter := middleware.NewRateLimiter(60, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Course Routes ────
		r.Route("/courses", func(r chi.Router) {
			r.Get("/", sessionHandler.ListCourses)
			r.Get("/{code}/today-session", sessionHandler.TodaySession)
		})

		// ──── Session Routes ────
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/questions", questionHandler.List)
			r.Get("/summary", sessionHandler.Summary)
			r.Post("/important", sessionHandler.MarkImportant)
			r.Post("/hard-threshold-capture", sessionHandler.HardThresholdCapture)
			r.Post("/end", sessionHandler.EndSession)

			r.Group(func(r chi.Router) {
				r.Use(commandLimiter.Middleware)
				r.Post("/feedback", sessionHandler.SubmitFeedback)
				r.Post("/questions/intent", questionHandler.StartIntent)
			})
		})

		// ──── Question Routes ────
		r.Route("/questions/{id}", func(r chi.Router) {
			r.Post("/capture", questionHandler.UploadCapture)
			r.Post("/text", questionHandler.SubmitText)
			r.Post("/ai-answer", questionHandler.RequestAnswer)
			r.Post("/forward", questionHandler.Forward)

			r.Group(func(r chi.Router) {
				r.Use(commandLimiter.Middleware)
				r.Post("/like", questionHandler.Like)
			})
		})
	})

	// Screenshot captures
	fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(storagePath)))
	r.Get("/media/*", fileServer.ServeHTTP)

	// ──── WebSocket ────
	r.Get("/ws/session/{sessionID}/{role}", hub.HandleWebSocket)

	return r
}
