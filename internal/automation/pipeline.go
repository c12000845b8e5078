// Package automation runs a grant search end to end: sign in and search, extract
// the results, then export them.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/agent"
	"github.com/xkilldash9x/grantscout/internal/browser"
	"github.com/xkilldash9x/grantscout/internal/config"
	"github.com/xkilldash9x/grantscout/internal/grants"
	"github.com/xkilldash9x/grantscout/internal/sheets"
	"github.com/xkilldash9x/grantscout/internal/tasks"
)

var (
	// ErrNoResult means the extraction phase never produced a final result.
	ErrNoResult = errors.New("extraction finished without a result")
	// ErrNoCredentials means the site login cannot be attempted.
	ErrNoCredentials = errors.New("site username and password are required (set MYUSERNAME and MYPASSWORD)")
)

// Session is one browser tab owned by a single run.
type Session interface {
	browser.Page
	Close() error
}

// SessionFactory opens a fresh browser for a run. The session must not outlive ctx.
type SessionFactory func(ctx context.Context) (Session, error)

// Archive stores exported batches. *store.Store satisfies it.
type Archive interface {
	SaveBatch(ctx context.Context, runID string, b grants.Batch) error
}

// Result describes a finished run.
type Result struct {
	Path  string
	Batch grants.Batch
}

// Pipeline runs the two agent phases against one browser session per run.
type Pipeline struct {
	llm         schemas.LLMClient
	newSession  SessionFactory
	clipboard   browser.Clipboard
	site        config.SiteConfig
	agentCfg    config.AgentConfig
	sheetPrefix string
	output      string
	archive     Archive
	ctrlOpts    []agent.ControllerOption
	logger      *zap.Logger
}

var _ tasks.Runner = (*Pipeline)(nil)

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithArchive stores every exported batch in a.
func WithArchive(a Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithControllerOptions adds options to each run's action controller.
func WithControllerOptions(opts ...agent.ControllerOption) Option {
	return func(p *Pipeline) { p.ctrlOpts = append(p.ctrlOpts, opts...) }
}

// NewPipeline builds a pipeline from the configuration.
func NewPipeline(llm schemas.LLMClient, newSession SessionFactory, clipboard browser.Clipboard, cfg config.Interface, logger *zap.Logger, opts ...Option) *Pipeline {
	agentCfg := cfg.Agent()
	p := &Pipeline{
		llm:         llm,
		newSession:  newSession,
		clipboard:   clipboard,
		site:        cfg.Site(),
		agentCfg:    agentCfg,
		sheetPrefix: cfg.Sheets().URLPrefix,
		output:      cfg.Automation().Output,
		logger:      logger.Named("automation"),
		ctrlOpts: []agent.ControllerOption{
			agent.WithTypingDelay(agentCfg.TypingDelay),
			agent.WithMaxElements(agentCfg.MaxElements),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ChromeSessions returns a SessionFactory that launches Chrome with cfg.
func ChromeSessions(cfg config.BrowserConfig, logger *zap.Logger) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		s, err := browser.NewSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Run implements tasks.Runner.
func (p *Pipeline) Run(ctx context.Context, runID, prompt string) error {
	_, err := p.Execute(ctx, runID, prompt)
	return err
}

// Execute performs one search run and writes the CSV.
func (p *Pipeline) Execute(ctx context.Context, runID, prompt string) (Result, error) {
	logger := p.logger.With(zap.String("run_id", runID))
	if !p.site.HasCredentials() {
		return Result{}, ErrNoCredentials
	}

	start := time.Now()
	sess, err := p.newSession(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("Failed to close browser session", zap.Error(cerr))
		}
	}()

	controller := agent.NewController(logger, p.ctrlOpts...)
	if err := sheets.Register(controller, sheets.NewActions(p.clipboard, p.sheetPrefix, logger)); err != nil {
		return Result{}, err
	}
	secrets := Secrets(p.site)

	logger.Info("Starting search phase")
	search := agent.New(p.llm, controller, sess, agent.Settings{
		Task:           prompt,
		InitialActions: LoginScript(p.site),
		Secrets:        secrets,
		MaxSteps:       p.agentCfg.MaxSteps,
		MaxFailures:    p.agentCfg.MaxFailures,
	}, logger)
	if h, err := search.Run(ctx); err != nil {
		return Result{}, fmt.Errorf("search phase failed: %w", err)
	} else if !h.IsDone() {
		logger.Warn("Search phase stopped before finishing; extracting from the current page", zap.Int("steps", len(h.Steps)))
	}

	logger.Info("Starting extraction phase")
	extract := agent.New(p.llm, controller, sess, agent.Settings{
		Task:        ExtractionTask,
		Secrets:     secrets,
		MaxSteps:    p.agentCfg.MaxSteps,
		MaxFailures: p.agentCfg.MaxFailures,
	}, logger)
	h, err := extract.Run(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("extraction phase failed: %w", err)
	}
	if h.FinalResult == "" {
		logger.Error("No result")
		return Result{}, ErrNoResult
	}

	batch, err := grants.ParseBatch(h.FinalResult)
	if err != nil {
		return Result{}, err
	}
	path, err := grants.WriteCSV(p.output, batch)
	if err != nil {
		return Result{}, err
	}
	logger.Info("Printed results", zap.String("path", path), zap.Int("grants", batch.Len()), zap.Duration("duration", time.Since(start)))

	if p.archive != nil {
		// Archive failures are logged, not returned.
		if err := p.archive.SaveBatch(ctx, runID, batch); err != nil {
			logger.Error("Failed to archive grants", zap.Error(err))
		}
	}
	return Result{Path: path, Batch: batch}, nil
}
