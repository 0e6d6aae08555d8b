package advisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/feedback"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAISource asks a Gemini model for feedback on the task list.
type GenAISource struct {
	models      contentGenerator
	model       string
	temperature float32
	timeout     time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// Config configures GenAISource.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// NewGenAISource creates the Gemini-backed advisory source.
func NewGenAISource(ctx context.Context, cfg Config, logger *zap.Logger) (*GenAISource, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGenAISource(client.Models, cfg, logger), nil
}

func newGenAISource(models contentGenerator, cfg Config, logger *zap.Logger) *GenAISource {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenAISource{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		now:         time.Now,
		logger:      logger,
	}
}

// GetFeedback implements feedback.Source. Transport errors are returned as
// errors; a reply that cannot be understood is reported through the
// unavailable marker so the caller retries on the next evaluation.
func (s *GenAISource) GetFeedback(ctx context.Context, userID string, tasks []domain.Task) (domain.Feedback, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := BuildPrompt(tasks, s.now())
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(s.temperature),
		MaxOutputTokens:  1024,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("GenAI generate failed: %w", err)
	}
	if resp == nil {
		return domain.UnavailableFeedback("empty reply"), nil
	}

	fb, err := ParseFeedback(resp.Text())
	if err != nil {
		s.logger.Warn("unusable advisor reply", zap.String("user_id", userID), zap.Error(err))
		return domain.UnavailableFeedback("unusable reply"), nil
	}
	fb.UserID = userID
	return fb, nil
}

var _ feedback.Source = (*GenAISource)(nil)
