// Package sheets drives a Google Sheets tab through keyboard shortcuts and the clipboard.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/agent"
	"github.com/xkilldash9x/grantscout/internal/browser"
)

// DefaultURLPrefix is the address prefix every spreadsheet page shares.
const DefaultURLPrefix = "https://docs.google.com/spreadsheets/"

var (
	// ErrNotSheet is returned, before any input is sent, when the tab is not a spreadsheet.
	ErrNotSheet = errors.New("Current page is not a Google Sheet")
	// ErrSheetAccess is returned when navigation to a sheet ends somewhere else.
	ErrSheetAccess = errors.New("Failed to open Google Sheet, are you sure you have permissions to access this sheet?")
)

// escapeTimeout bounds the trailing Escape sent after the caller's context is gone.
const escapeTimeout = 2 * time.Second

// Actions is the spreadsheet action library. It holds no page; each call acts on the page it is given.
type Actions struct {
	clipboard  browser.Clipboard
	prefix     string
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	rangeDelay time.Duration
	cellDelay  time.Duration
}

// NewActions returns the library. An empty prefix means DefaultURLPrefix.
func NewActions(clipboard browser.Clipboard, prefix string, logger *zap.Logger) *Actions {
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	return &Actions{
		clipboard:  clipboard,
		prefix:     prefix,
		logger:     logger.Named("sheets"),
		sleep:      browser.Sleep,
		rangeDelay: 50 * time.Millisecond,
		cellDelay:  100 * time.Millisecond,
	}
}

// IsSheet reports whether url is a spreadsheet page.
func (a *Actions) IsSheet(url string) bool {
	return strings.HasPrefix(url, a.prefix)
}

func (a *Actions) guard(ctx context.Context, page browser.Page) (string, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return "", err
	}
	if !a.IsSheet(url) {
		return url, ErrNotSheet
	}
	return url, nil
}

// OpenSheet navigates to url unless the tab is already there, then checks it landed on a sheet.
func (a *Actions) OpenSheet(ctx context.Context, page browser.Page, url string) (agent.ActionResult, error) {
	current, err := a.guard(ctx, page)
	if err != nil {
		return agent.ActionResult{}, err
	}

	if current != url {
		if err := page.Navigate(ctx, url); err != nil {
			return agent.ActionResult{}, err
		}
		if err := page.WaitLoad(ctx); err != nil {
			return agent.ActionResult{}, err
		}
	}
	if _, err := a.guard(ctx, page); err != nil {
		if errors.Is(err, ErrNotSheet) {
			return agent.ActionResult{}, ErrSheetAccess
		}
		return agent.ActionResult{}, err
	}
	return agent.ActionResult{ExtractedContent: "Opened Google Sheet " + url}, nil
}

// ReadAll copies the whole sheet and returns it as TSV.
func (a *Actions) ReadAll(ctx context.Context, page browser.Page) (agent.ActionResult, error) {
	if _, err := a.guard(ctx, page); err != nil {
		return agent.ActionResult{}, err
	}

	err := a.press(ctx, page,
		browser.KeyEnter,
		browser.KeyEscape,
		browser.Shortcut('a'),
		browser.Shortcut('c'),
	)
	if err != nil {
		return agent.ActionResult{}, err
	}
	tsv, err := a.readClipboard()
	if err != nil {
		return agent.ActionResult{}, err
	}
	return agent.ActionResult{ExtractedContent: tsv, IncludeInMemory: true}, nil
}

// SelectRange jumps to token (e.g. "A1:D10") from the sheet origin. It always
// finishes with Escape once the guard passed, so a failed jump leaves no popup open.
func (a *Actions) SelectRange(ctx context.Context, page browser.Page, token string) (agent.ActionResult, error) {
	if _, err := a.guard(ctx, page); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.selectRange(ctx, page, token); err != nil {
		return agent.ActionResult{}, err
	}
	return agent.ActionResult{ExtractedContent: "Selected cell " + token}, nil
}

func (a *Actions) selectRange(ctx context.Context, page browser.Page, token string) (err error) {
	defer func() {
		escCtx, cancel := context.WithTimeout(browser.Detach(ctx), escapeTimeout)
		defer cancel()
		if escErr := page.Press(escCtx, browser.KeyEscape); escErr != nil {
			a.logger.Warn("Failed to dismiss range popup", zap.String("range", token), zap.Error(escErr))
			if err == nil {
				err = escErr
			}
		}
	}()

	steps := []func() error{
		// Commit an in-progress edit, then drop focus so the jump is not additive.
		func() error { return a.press(ctx, page, browser.KeyEnter, browser.KeyEscape) },
		func() error { return a.sleep(ctx, 100*time.Millisecond) },
		// Relative jumps are unreliable, so always start from the origin.
		func() error { return a.press(ctx, page, browser.KeyHome, browser.KeyArrowUp) },
		func() error { return a.sleep(ctx, 100*time.Millisecond) },
		func() error { return a.press(ctx, page, browser.Ctrl('j')) },
		func() error { return a.sleep(ctx, 200*time.Millisecond) },
		func() error { return page.Type(ctx, token, a.rangeDelay) },
		func() error { return a.sleep(ctx, 200*time.Millisecond) },
		func() error { return a.press(ctx, page, browser.KeyEnter) },
		func() error { return a.sleep(ctx, 200*time.Millisecond) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("failed to select range %q: %w", token, err)
		}
	}
	return nil
}

// ReadRange selects token, copies it and returns the TSV.
func (a *Actions) ReadRange(ctx context.Context, page browser.Page, token string) (agent.ActionResult, error) {
	if _, err := a.guard(ctx, page); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.selectRange(ctx, page, token); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.press(ctx, page, browser.Shortcut('c')); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.sleep(ctx, 100*time.Millisecond); err != nil {
		return agent.ActionResult{}, err
	}
	tsv, err := a.readClipboard()
	if err != nil {
		return agent.ActionResult{}, err
	}
	return agent.ActionResult{ExtractedContent: tsv, IncludeInMemory: true}, nil
}

// ClearRange deletes the contents of the current selection.
func (a *Actions) ClearRange(ctx context.Context, page browser.Page) (agent.ActionResult, error) {
	if _, err := a.guard(ctx, page); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.press(ctx, page, browser.KeyBackspace); err != nil {
		return agent.ActionResult{}, err
	}
	return agent.ActionResult{ExtractedContent: "Cleared selected range"}, nil
}

// WriteCell types text into the selected cell, commits it, and moves back up
// so the next action does not land on the row below.
func (a *Actions) WriteCell(ctx context.Context, page browser.Page, text string) (agent.ActionResult, error) {
	if _, err := a.guard(ctx, page); err != nil {
		return agent.ActionResult{}, err
	}
	if err := page.Type(ctx, text, a.cellDelay); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.press(ctx, page, browser.KeyEnter, browser.KeyArrowUp); err != nil {
		return agent.ActionResult{}, err
	}
	return agent.ActionResult{ExtractedContent: "Inputted text " + text}, nil
}

// UpdateRange selects token and pastes tsv into it through a synthetic paste
// event. The system clipboard is not touched.
func (a *Actions) UpdateRange(ctx context.Context, page browser.Page, token, tsv string) (agent.ActionResult, error) {
	if _, err := a.guard(ctx, page); err != nil {
		return agent.ActionResult{}, err
	}
	if err := a.selectRange(ctx, page, token); err != nil {
		return agent.ActionResult{}, err
	}
	script, err := pasteScript(tsv)
	if err != nil {
		return agent.ActionResult{}, err
	}
	if err := page.Evaluate(ctx, script, nil); err != nil {
		return agent.ActionResult{}, fmt.Errorf("failed to paste into %q: %w", token, err)
	}
	return agent.ActionResult{ExtractedContent: fmt.Sprintf("Updated cell %s with %s", token, tsv)}, nil
}

// pasteScript embeds the payload as a JSON string literal, which is also valid JavaScript.
func pasteScript(tsv string) (string, error) {
	payload, err := jsoniter.Marshal(tsv)
	if err != nil {
		return "", fmt.Errorf("failed to encode paste payload: %w", err)
	}
	return fmt.Sprintf(`(function (text) {
  const clipboardData = new DataTransfer();
  clipboardData.setData('text/plain', text);
  document.activeElement.dispatchEvent(new ClipboardEvent('paste', { clipboardData, bubbles: true, cancelable: true }));
})(%s)`, payload), nil
}

func (a *Actions) press(ctx context.Context, page browser.Page, keys ...browser.Key) error {
	for _, k := range keys {
		if err := page.Press(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actions) readClipboard() (string, error) {
	text, err := a.clipboard.Read()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return text, nil
}
