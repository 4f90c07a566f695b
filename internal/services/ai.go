package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"google.golang.org/api/option"
)

// answerFallback is returned whenever the answering model fails or times out.
// Upstream AI failures are never surfaced to clients.
const answerFallback = "The AI assistant could not produce an answer right now. You can still forward your question to the professor."

const aiCallTimeout = 30 * time.Second

// AIService wraps the Gemini collaborators used by the question lifecycle and
// the moment enrichment worker: cleaning, answering and image summarization.
// Every method applies its fallback instead of returning an error.
type AIService struct {
	client      *genai.Client
	cleanModel  *genai.GenerativeModel
	answerModel *genai.GenerativeModel
	storage     *LocalStorage
	rateChan    chan struct{} // Token bucket
}

func NewAIService(apiKey string, concurrentReqs int, storage *LocalStorage) (*AIService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Cleaning wants a fast turnaround; answering and summarization can
	// afford the larger model.
	cleanModel := client.GenerativeModel("gemini-2.5-flash-lite")
	cleanModel.SetTemperature(0.3)

	answerModel := client.GenerativeModel("gemini-2.5-flash")
	answerModel.SetTemperature(0.7)
	answerModel.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &AIService{
		client:      client,
		cleanModel:  cleanModel,
		answerModel: answerModel,
		storage:     storage,
		rateChan:    rateChan,
	}, nil
}

func (s *AIService) Close() {
	s.client.Close()
}

func (s *AIService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AIService) releaseRate() {
	s.rateChan <- struct{}{}
}

// CleanQuestion rewrites a raw student question into a clear one, taking the
// slide capture into account when present. Falls back to the trimmed original
// text on any failure.
func (s *AIService) CleanQuestion(ctx context.Context, text, capturePath string) string {
	prompt := "Rewrite the following student question so it is clear, concise and free of typos. " +
		"Keep the original language and intent. If a lecture slide image is attached, use it for context. " +
		"Return only the rewritten question.\n\nQuestion: " + text

	cleaned, err := s.generate(ctx, s.cleanModel, prompt, capturePath)
	if err != nil {
		log.Printf("question clean failed, using original text: %v", err)
		return strings.TrimSpace(text)
	}
	return cleaned
}

// AnswerQuestion produces a short tutoring answer for a cleaned question.
// Falls back to a generic apology message on any failure.
func (s *AIService) AnswerQuestion(ctx context.Context, text, capturePath string) string {
	prompt := "You are a teaching assistant answering a student's question during a lecture. " +
		"Answer clearly and concisely in the language of the question. " +
		"If a lecture slide image is attached, ground the answer in it.\n\nQuestion: " + text

	answer, err := s.generate(ctx, s.answerModel, prompt, capturePath)
	if err != nil {
		log.Printf("question answer failed, using fallback: %v", err)
		return answerFallback
	}
	return answer
}

// SummarizeImage describes a captured lecture slide in one or two sentences.
// Returns "" when the model fails so callers leave the note unchanged.
func (s *AIService) SummarizeImage(ctx context.Context, capturePath, subject string) string {
	prompt := "Summarize the key point of this lecture slide in one or two short sentences."
	if subject != "" {
		prompt += " The course subject is " + subject + "."
	}

	summary, err := s.generate(ctx, s.answerModel, prompt, capturePath)
	if err != nil {
		log.Printf("image summarization failed for %s: %v", capturePath, err)
		return ""
	}
	return summary
}

func (s *AIService) generate(ctx context.Context, model *genai.GenerativeModel, prompt, capturePath string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	ctx, cancel := context.WithTimeout(ctx, aiCallTimeout)
	defer cancel()

	parts := []genai.Part{genai.Text(prompt)}
	if capturePath != "" {
		if img, ok := s.loadImage(capturePath); ok {
			parts = append(parts, img)
		}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}

// loadImage reads a stored capture from disk. An unreadable image degrades to
// a text-only call rather than failing the request.
func (s *AIService) loadImage(relPath string) (genai.Part, bool) {
	data, err := os.ReadFile(s.storage.FullPath(relPath))
	if err != nil {
		log.Printf("capture read failed for %s, proceeding without image: %v", relPath, err)
		return nil, false
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	if format == "jpg" {
		format = "jpeg"
	}
	return genai.ImageData(format, data), true
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}
