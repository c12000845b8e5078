// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/config"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("gemini returned an empty response")

// contentGenerator is the slice of *genai.Models the client depends on.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements schemas.LLMClient on top of the Google GenAI SDK.
// Requests are sent once; failures are returned to the caller unchanged.
type GeminiClient struct {
	models  contentGenerator
	model   string
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient initializes a client bound to a single model name.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGeminiClient(client.Models, cfg, model, logger), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMConfig, model string, logger *zap.Logger) *GeminiClient {
	c := &GeminiClient{
		models: models,
		model:  model,
		cfg:    cfg,
		logger: logger.Named("llm_client.gemini").With(zap.String("model", model)),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// Generate sends the request to Gemini and returns the concatenated text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	contents := buildContents(req)
	if len(contents) == 0 {
		return "", fmt.Errorf("generation request has no content")
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, c.buildConfig(req))
	if err != nil {
		c.logger.Warn("Gemini request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	fields := []zap.Field{zap.Duration("duration", time.Since(start))}
	if resp.UsageMetadata != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount),
			zap.Int32("total_tokens", resp.UsageMetadata.TotalTokenCount),
		)
	}
	c.logger.Debug("LLM generation complete (Gemini)", fields...)
	return text, nil
}

// Close releases nothing today; the SDK client owns no long-lived connections.
func (c *GeminiClient) Close() error { return nil }

func (c *GeminiClient) buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	temperature := c.cfg.Temperature
	if req.Options.Temperature > 0 {
		temperature = float32(req.Options.Temperature)
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
	}

	maxTokens := c.cfg.MaxTokens
	if req.Options.MaxOutputTokens > 0 {
		maxTokens = req.Options.MaxOutputTokens
	}
	if maxTokens > 0 {
		gc.MaxOutputTokens = int32(maxTokens)
	}

	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

func buildContents(req schemas.GenerationRequest) []*genai.Content {
	if len(req.Messages) == 0 {
		if req.UserPrompt == "" {
			return nil
		}
		return []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == schemas.RoleAI {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
