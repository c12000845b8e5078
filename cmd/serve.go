package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/grantscout/internal/api"
	"github.com/xkilldash9x/grantscout/internal/chat"
	"github.com/xkilldash9x/grantscout/internal/config"
	"github.com/xkilldash9x/grantscout/internal/observability"
	"github.com/xkilldash9x/grantscout/internal/session"
	"github.com/xkilldash9x/grantscout/internal/tasks"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat web server",
		Long: `Serves the chat page. Once the assistant has a grant type, keywords and a
deadline it launches a browser search in the background and writes the results to CSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ServerCfg.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("headless") {
				headless, _ := cmd.Flags().GetBool("headless")
				cfg.SetBrowserHeadless(headless)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("headless", false, "Run Chrome headless (overrides browser.headless)")
	return serveCmd
}

// runServe wires the chat server to a task registry running the pipeline and
// blocks until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	comps, err := initializeComponents(ctx, cfg, logger)
	defer comps.Shutdown()
	if err != nil {
		return err
	}

	regOpts := []tasks.Option{tasks.WithMaxConcurrent(cfg.Automation().MaxConcurrent)}
	if comps.Store != nil {
		regOpts = append(regOpts, tasks.WithRecorder(comps.Store))
	}
	registry := tasks.NewRegistry(ctx, comps.Pipeline, logger, regOpts...)

	serverCfg := cfg.Server()
	signer, err := session.NewSigner(serverCfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("failed to create session signer: %w", err)
	}
	sessions := session.NewMemoryStore()
	engine := chat.NewEngine(comps.LLM, registry, cfg.Site().URL, logger)
	srv := api.NewServer(serverCfg, engine, sessions, signer, registry, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return sessions.RunSweeper(gctx, serverCfg.SessionIdleTimeout, serverCfg.SweepInterval, logger)
	})
	runErr := g.Wait()

	logger.Info("Waiting for running searches to stop")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Searches did not stop in time", zap.Error(err))
	}
	return runErr
}
