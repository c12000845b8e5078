package sheets

import (
	"context"

	"github.com/xkilldash9x/grantscout/internal/agent"
	"github.com/xkilldash9x/grantscout/internal/browser"
)

// Register adds the spreadsheet actions to c.
func Register(c *agent.Controller, a *Actions) error {
	actions := []agent.Action{
		{
			Name:        "open_google_sheet",
			Description: "Google Sheets: Open a specific Google Sheet",
			Params:      []string{"google_sheet_url"},
			Handler: func(ctx context.Context, page browser.Page, p agent.Params) (agent.ActionResult, error) {
				url, err := p.String("google_sheet_url")
				if err != nil {
					return agent.ActionResult{}, err
				}
				return a.OpenSheet(ctx, page, url)
			},
		},
		{
			Name:        "get_sheet_contents",
			Description: "Google Sheets: Get the contents of the entire sheet",
			Handler: func(ctx context.Context, page browser.Page, _ agent.Params) (agent.ActionResult, error) {
				return a.ReadAll(ctx, page)
			},
		},
		{
			Name:        "select_cell_or_range",
			Description: "Google Sheets: Select a specific cell or range of cells",
			Params:      []string{"cell_or_range"},
			Handler: func(ctx context.Context, page browser.Page, p agent.Params) (agent.ActionResult, error) {
				token, err := p.String("cell_or_range")
				if err != nil {
					return agent.ActionResult{}, err
				}
				return a.SelectRange(ctx, page, token)
			},
		},
		{
			Name:        "get_range_contents",
			Description: "Google Sheets: Get the contents of a specific cell or range of cells",
			Params:      []string{"cell_or_range"},
			Handler: func(ctx context.Context, page browser.Page, p agent.Params) (agent.ActionResult, error) {
				token, err := p.String("cell_or_range")
				if err != nil {
					return agent.ActionResult{}, err
				}
				return a.ReadRange(ctx, page, token)
			},
		},
		{
			Name:        "clear_selected_range",
			Description: "Google Sheets: Clear the currently selected cells",
			Handler: func(ctx context.Context, page browser.Page, _ agent.Params) (agent.ActionResult, error) {
				return a.ClearRange(ctx, page)
			},
		},
		{
			Name:        "input_selected_cell_text",
			Description: "Google Sheets: Input text into the currently selected cell",
			Params:      []string{"text"},
			Handler: func(ctx context.Context, page browser.Page, p agent.Params) (agent.ActionResult, error) {
				text, err := p.String("text")
				if err != nil {
					return agent.ActionResult{}, err
				}
				return a.WriteCell(ctx, page, text)
			},
		},
		{
			Name:        "update_range_contents",
			Description: "Google Sheets: Batch update a range of cells",
			Params:      []string{"range", "new_contents_tsv"},
			Handler: func(ctx context.Context, page browser.Page, p agent.Params) (agent.ActionResult, error) {
				token, err := p.String("range")
				if err != nil {
					return agent.ActionResult{}, err
				}
				tsv, err := p.String("new_contents_tsv")
				if err != nil {
					return agent.ActionResult{}, err
				}
				return a.UpdateRange(ctx, page, token, tsv)
			},
		},
	}
	for _, action := range actions {
		if err := c.Register(action); err != nil {
			return err
		}
	}
	return nil
}
