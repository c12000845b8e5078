package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/chat"
	"github.com/xkilldash9x/grantscout/internal/observability"
)

type searchOptions struct {
	prompt    string
	grantType string
	keyword   string
	deadline  string
}

// buildPrompt returns --prompt as given, or fills the question-by-question
// template from the three slot flags.
func (o searchOptions) buildPrompt(siteURL string) (string, error) {
	if p := strings.TrimSpace(o.prompt); p != "" {
		return p, nil
	}
	if strings.TrimSpace(o.grantType) == "" {
		return "", fmt.Errorf("either --prompt or --grant-type is required")
	}
	return chat.SearchPromptFromAnswers(siteURL, chat.State{
		GrantType: o.grantType,
		Keyword:   o.keyword,
		Deadline:  o.deadline,
	}), nil
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Run one grant search in the foreground and write the CSV",
		Example: `  grantscout search --grant-type "STEM research" --keyword robotics --deadline 12-Mar-2026
  grantscout search --prompt "In the database https://spin.infoedglobal.com find ..." -o ~/grants.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				out, _ := cmd.Flags().GetString("output")
				cfg.SetAutomationOutput(out)
			}
			if cmd.Flags().Changed("headless") {
				headless, _ := cmd.Flags().GetBool("headless")
				cfg.SetBrowserHeadless(headless)
			}

			prompt, err := opts.buildPrompt(cfg.Site().URL)
			if err != nil {
				return err
			}

			logger := observability.GetLogger()
			comps, err := initializeComponents(ctx, cfg, logger)
			defer comps.Shutdown()
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger.Info("Starting search", zap.String("run_id", runID))
			result, err := comps.Pipeline.Execute(ctx, runID, prompt)
			if err != nil {
				return fmt.Errorf("search %s failed: %w", runID, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d grants to %s\n", result.Batch.Len(), result.Path)
			return nil
		},
	}

	searchCmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Full task for the search agent")
	searchCmd.Flags().StringVar(&opts.grantType, "grant-type", "", "Type of grant, e.g. \"STEM research\"")
	searchCmd.Flags().StringVar(&opts.keyword, "keyword", "", "Keywords to search for")
	searchCmd.Flags().StringVar(&opts.deadline, "deadline", "", "Earliest deadline (format 12-Mar-2026)")
	searchCmd.Flags().StringP("output", "o", "", "CSV output path (overrides automation.output)")
	searchCmd.Flags().Bool("headless", false, "Run Chrome headless (overrides browser.headless)")
	searchCmd.MarkFlagsMutuallyExclusive("prompt", "grant-type")
	searchCmd.MarkFlagsMutuallyExclusive("prompt", "keyword")
	searchCmd.MarkFlagsMutuallyExclusive("prompt", "deadline")
	return searchCmd
}
