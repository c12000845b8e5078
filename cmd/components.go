package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/automation"
	"github.com/xkilldash9x/grantscout/internal/browser"
	"github.com/xkilldash9x/grantscout/internal/config"
	"github.com/xkilldash9x/grantscout/internal/llmclient"
	"github.com/xkilldash9x/grantscout/internal/observability"
	"github.com/xkilldash9x/grantscout/internal/store"
)

// Constructors swapped out by tests so no command starts Chrome or calls Gemini.
var (
	newLLMClient = func(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
		router, err := llmclient.NewRouterFromConfig(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return router, nil
	}
	newSessionFactory                   = automation.ChromeSessions
	systemClipboard   browser.Clipboard = browser.SystemClipboard{}
)

// components holds the services shared by serve and search.
type components struct {
	LLM      schemas.LLMClient
	Store    *store.Store
	DBPool   *pgxpool.Pool
	Pipeline *automation.Pipeline
}

// Shutdown releases everything that was opened. Safe on a partial build.
func (c *components) Shutdown() {
	logger := observability.GetLogger()
	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client", zap.Error(err))
		}
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}

// initializeComponents builds the LLM router, the optional archive and the
// automation pipeline.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	llm, err := newLLMClient(ctx, cfg.Agent().LLM, logger)
	if err != nil {
		return c, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	c.LLM = llm

	var opts []automation.Option
	if url := cfg.Database().URL; url != "" {
		st, pool, err := store.Connect(ctx, url, logger)
		if err != nil {
			return c, fmt.Errorf("failed to connect to archive database: %w", err)
		}
		c.Store, c.DBPool = st, pool
		if err := st.EnsureSchema(ctx); err != nil {
			return c, fmt.Errorf("failed to prepare archive schema: %w", err)
		}
		opts = append(opts, automation.WithArchive(st))
	} else {
		logger.Info("No database configured; results are only written to CSV")
	}

	sessions := newSessionFactory(cfg.Browser(), logger)
	c.Pipeline = automation.NewPipeline(c.LLM, sessions, systemClipboard, cfg, logger, opts...)
	return c, nil
}
