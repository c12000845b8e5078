// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/config"
)

// NewClient is a factory function that creates a single-model LLMClient based on the configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(ctx, cfg, model, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}

// NewRouterFromConfig builds one client per tier and wraps them in an LLMRouter.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*LLMRouter, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	fast, err := NewClient(ctx, cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast tier client: %w", err)
	}
	powerful, err := NewClient(ctx, cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
	}
	return NewLLMRouter(logger, fast, powerful)
}
