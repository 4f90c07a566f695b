package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classlive-backend/internal/config"
	"classlive-backend/internal/database"
	"classlive-backend/internal/handlers"
	"classlive-backend/internal/presence"
	"classlive-backend/internal/realtime"
	"classlive-backend/internal/repository"
	"classlive-backend/internal/router"
	"classlive-backend/internal/services"
	"classlive-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting ClassLive Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	courseRepo := repository.NewCourseRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	questionRepo := repository.NewQuestionRepo(pool)
	feedbackRepo := repository.NewFeedbackRepo(pool)
	momentRepo := repository.NewMomentRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	storage := services.NewLocalStorage(cfg.StoragePath)
	aiService, err := services.NewAIService(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs, storage)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer aiService.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Step 6: Start Realtime Hub ────
	presenceStore := presence.NewRedisStore(redisClients.Queue)
	broker := realtime.NewRedisBroker(redisClients.PubSub)
	hub := realtime.NewHub(realtime.NewRegistry(), presenceStore, broker)
	log.Println("✓ Realtime hub started")

	// ──── Initialize Services ────
	enrichQueue := worker.NewQueue(redisClients.Queue)
	questionService := services.NewQuestionService(questionRepo, momentRepo, sessionRepo, aiService, hub, storage)
	sessionService := services.NewSessionService(courseRepo, sessionRepo, feedbackRepo, momentRepo, questionRepo, hub, enrichQueue, storage)

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(sessionService)
	questionHandler := handlers.NewQuestionHandler(questionService)

	// ──── Step 7: Start Enrichment Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, momentRepo, sessionRepo, courseRepo, aiService, 3)
	workerPool.Start()
	log.Println("✓ Enrichment worker pool started (3 goroutines)")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		sessionHandler,
		questionHandler,
		hub,
		cfg.FrontendURL,
		cfg.StoragePath,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ClassLive Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/ws/session/{sessionID}/{role}", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
