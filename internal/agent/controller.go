// internal/agent/controller.go
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/browser"
)

// Handler performs one action against the page.
type Handler func(ctx context.Context, page browser.Page, params Params) (ActionResult, error)

// Action is a named capability the planner can invoke.
type Action struct {
	Name        string
	Description string
	Params      []string
	Handler     Handler
}

// Controller is the registry of actions available to an agent.
type Controller struct {
	logger      *zap.Logger
	actions     map[string]Action
	typingDelay time.Duration
	maxElements int
	sleep       func(ctx context.Context, d time.Duration) error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTypingDelay sets the per-character delay used by send_keys.
func WithTypingDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.typingDelay = d }
}

// WithMaxElements caps how many interactive elements an observation indexes.
func WithMaxElements(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxElements = n
		}
	}
}

// WithSleep replaces the pause used by the wait action.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ControllerOption {
	return func(c *Controller) { c.sleep = sleep }
}

// NewController returns a controller holding the built-in browser actions.
func NewController(logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		logger:      logger.Named("controller"),
		actions:     make(map[string]Action),
		typingDelay: 50 * time.Millisecond,
		maxElements: 150,
		sleep:       browser.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerBuiltins()
	return c
}

// Register adds an action. Names must be unique.
func (c *Controller) Register(a Action) error {
	if a.Name == "" || a.Handler == nil {
		return fmt.Errorf("action must have a name and a handler")
	}
	if _, exists := c.actions[a.Name]; exists {
		return fmt.Errorf("action %q is already registered", a.Name)
	}
	c.actions[a.Name] = a
	return nil
}

// Has reports whether name is registered.
func (c *Controller) Has(name string) bool {
	_, ok := c.actions[name]
	return ok
}

// Names returns the registered action names in sorted order.
func (c *Controller) Names() []string {
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the action list for the planner prompt.
func (c *Controller) Describe() string {
	var b strings.Builder
	for _, name := range c.Names() {
		a := c.actions[name]
		fmt.Fprintf(&b, "- %s: %s", a.Name, a.Description)
		if len(a.Params) > 0 {
			fmt.Fprintf(&b, " (params: %s)", strings.Join(a.Params, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Execute runs the named action. Handler errors and unknown names come back
// as ActionResult.Error, never as a Go error, so the loop can report them to the planner.
func (c *Controller) Execute(ctx context.Context, page browser.Page, name string, params Params) ActionResult {
	a, ok := c.actions[name]
	if !ok {
		return ActionResult{Error: fmt.Sprintf("unknown action %q", name)}
	}
	if params == nil {
		params = Params{}
	}

	res, err := a.Handler(ctx, page, params)
	if err != nil {
		c.logger.Debug("Action failed", zap.String("action", name), zap.Error(err))
		return ActionResult{Error: err.Error()}
	}
	return res
}

// Observe indexes the interactive elements of the current page.
func (c *Controller) Observe(ctx context.Context, page browser.Page) (Observation, error) {
	var obs Observation
	if err := page.Evaluate(ctx, observeScript(c.maxElements), &obs); err != nil {
		return Observation{}, fmt.Errorf("failed to observe page: %w", err)
	}
	return obs, nil
}

func (c *Controller) registerBuiltins() {
	builtins := []Action{
		{
			Name:        "go_to_url",
			Description: "Navigate the current tab to a URL",
			Params:      []string{"url"},
			Handler:     c.goToURL,
		},
		{
			Name:        "click_element",
			Description: "Click the interactive element with the given index from the element list",
			Params:      []string{"index"},
			Handler:     c.clickElement,
		},
		{
			Name:        "send_keys",
			Description: `Type text into the focused element; "\n" presses Enter`,
			Params:      []string{"keys"},
			Handler:     c.sendKeys,
		},
		{
			Name:        "wait",
			Description: "Wait for a number of seconds",
			Params:      []string{"seconds"},
			Handler:     c.wait,
		},
		{
			Name:        "scroll_down",
			Description: "Scroll the page down by one screen, or by amount pixels",
			Params:      []string{"amount"},
			Handler:     c.scrollDown,
		},
		{
			Name:        "extract_page_text",
			Description: "Read the visible text of the current page",
			Handler:     c.extractPageText,
		},
		{
			Name:        "done",
			Description: "Finish the task and return the final result text",
			Params:      []string{"text"},
			Handler:     c.done,
		},
	}
	for _, a := range builtins {
		// Built-in names are fixed and unique.
		_ = c.Register(a)
	}
}

func (c *Controller) goToURL(ctx context.Context, page browser.Page, params Params) (ActionResult, error) {
	url, err := params.String("url")
	if err != nil {
		return ActionResult{}, err
	}
	if err := page.Navigate(ctx, url); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{ExtractedContent: "Navigated to " + url, IncludeInMemory: true}, nil
}

func (c *Controller) clickElement(ctx context.Context, page browser.Page, params Params) (ActionResult, error) {
	index, err := params.Int("index")
	if err != nil {
		return ActionResult{}, err
	}

	// Re-index so the number refers to the page as it is now.
	obs, err := c.Observe(ctx, page)
	if err != nil {
		return ActionResult{}, err
	}
	if index < 0 || index >= len(obs.Elements) {
		return ActionResult{}, fmt.Errorf("element with index %d does not exist (page has %d)", index, len(obs.Elements))
	}

	if err := page.Click(ctx, IndexSelector(index)); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{ExtractedContent: fmt.Sprintf("Clicked element %d: %s", index, obs.Elements[index]), IncludeInMemory: true}, nil
}

func (c *Controller) sendKeys(ctx context.Context, page browser.Page, params Params) (ActionResult, error) {
	keys, err := params.String("keys")
	if err != nil {
		return ActionResult{}, err
	}

	lines := strings.Split(keys, "\n")
	for i, line := range lines {
		if line != "" {
			if err := page.Type(ctx, line, c.typingDelay); err != nil {
				return ActionResult{}, err
			}
		}
		if i < len(lines)-1 {
			if err := page.Press(ctx, browser.KeyEnter); err != nil {
				return ActionResult{}, err
			}
		}
	}
	return ActionResult{ExtractedContent: "Sent keys: " + keys, IncludeInMemory: true}, nil
}

func (c *Controller) wait(ctx context.Context, _ browser.Page, params Params) (ActionResult, error) {
	seconds, err := params.Float("seconds")
	if err != nil {
		return ActionResult{}, err
	}
	if seconds < 0 {
		return ActionResult{}, fmt.Errorf("seconds must not be negative")
	}
	if err := c.sleep(ctx, time.Duration(seconds*float64(time.Second))); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{ExtractedContent: fmt.Sprintf("Waited %gs", seconds)}, nil
}

func (c *Controller) scrollDown(ctx context.Context, page browser.Page, params Params) (ActionResult, error) {
	script := "window.scrollBy(0, window.innerHeight)"
	if _, ok := params["amount"]; ok {
		amount, err := params.Int("amount")
		if err != nil {
			return ActionResult{}, err
		}
		script = fmt.Sprintf("window.scrollBy(0, %d)", amount)
	}
	if err := page.Evaluate(ctx, script, nil); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{ExtractedContent: "Scrolled down", IncludeInMemory: true}, nil
}

const maxPageText = 20000

func (c *Controller) extractPageText(ctx context.Context, page browser.Page, _ Params) (ActionResult, error) {
	var text string
	if err := page.Evaluate(ctx, "document.body ? document.body.innerText : ''", &text); err != nil {
		return ActionResult{}, err
	}
	if len(text) > maxPageText {
		text = text[:maxPageText]
	}
	return ActionResult{ExtractedContent: text, IncludeInMemory: true}, nil
}

func (c *Controller) done(_ context.Context, _ browser.Page, params Params) (ActionResult, error) {
	text, err := params.String("text")
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{ExtractedContent: text, IncludeInMemory: true, IsDone: true}, nil
}
