// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/browser"
	"github.com/xkilldash9x/grantscout/internal/llmutil"
)

// ErrTooManyFailures stops a run after MaxFailures consecutive failed steps.
var ErrTooManyFailures = errors.New("agent stopped after too many consecutive failures")

// InitialAction is a scripted action run before the planner takes over.
type InitialAction struct {
	Name   string
	Params Params
}

// Settings tune one agent run.
type Settings struct {
	Task           string
	InitialActions []InitialAction
	Secrets        Secrets
	MaxSteps       int
	MaxFailures    int
}

// StepRecord is one executed action. Params are stored with placeholders, never secrets.
type StepRecord struct {
	Number int          `json:"number"`
	Action string       `json:"action"`
	Params Params       `json:"params,omitempty"`
	Result ActionResult `json:"result"`
}

// History is the outcome of a run.
type History struct {
	Steps       []StepRecord `json:"steps"`
	FinalResult string       `json:"final_result,omitempty"`
}

// IsDone reports whether the planner called done.
func (h History) IsDone() bool {
	return len(h.Steps) > 0 && h.Steps[len(h.Steps)-1].Result.IsDone
}

// Agent drives a page toward a task by alternating observation, planning and action.
type Agent struct {
	llm        schemas.LLMClient
	controller *Controller
	page       browser.Page
	settings   Settings
	logger     *zap.Logger
}

// New builds an agent. MaxSteps and MaxFailures default to 50 and 3.
func New(llm schemas.LLMClient, controller *Controller, page browser.Page, settings Settings, logger *zap.Logger) *Agent {
	if settings.MaxSteps <= 0 {
		settings.MaxSteps = 50
	}
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 3
	}
	return &Agent{
		llm:        llm,
		controller: controller,
		page:       page,
		settings:   settings,
		logger:     logger.Named("agent"),
	}
}

type plannedAction struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
	Params  Params `json:"params"`
}

// Run executes the initial actions, then plans until done, MaxSteps, or MaxFailures.
// A History without FinalResult is returned with a nil error when the step budget runs out.
func (a *Agent) Run(ctx context.Context) (History, error) {
	var h History

	for _, ia := range a.settings.InitialActions {
		res := a.execute(ctx, &h, ia.Name, ia.Params)
		if res.Failed() {
			return h, fmt.Errorf("initial action %s failed: %s", ia.Name, res.Error)
		}
		if err := ctx.Err(); err != nil {
			return h, err
		}
	}
	if len(a.settings.InitialActions) > 0 {
		a.logger.Info("Initial actions completed", zap.Int("count", len(a.settings.InitialActions)))
	}

	failures := 0
	for step := 1; step <= a.settings.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return h, err
		}

		plan, err := a.plan(ctx, h)
		if err != nil {
			var planErr *planningError
			if !errors.As(err, &planErr) {
				return h, err
			}
			failures++
			a.logger.Warn("Planner produced an unusable step", zap.Int("step", step), zap.Error(err))
			h.Steps = append(h.Steps, StepRecord{Number: len(h.Steps) + 1, Result: ActionResult{Error: err.Error()}})
		} else {
			res := a.execute(ctx, &h, plan.Action, plan.Params)
			if res.IsDone {
				h.FinalResult = res.ExtractedContent
				a.logger.Info("Agent finished", zap.Int("steps", step))
				return h, nil
			}
			if res.Failed() {
				failures++
			} else {
				failures = 0
			}
		}

		if failures >= a.settings.MaxFailures {
			return h, fmt.Errorf("%w (%d)", ErrTooManyFailures, failures)
		}
	}

	a.logger.Warn("Agent ran out of steps without finishing", zap.Int("max_steps", a.settings.MaxSteps))
	return h, nil
}

func (a *Agent) execute(ctx context.Context, h *History, name string, params Params) ActionResult {
	res := a.controller.Execute(ctx, a.page, name, a.settings.Secrets.Substitute(params))
	res.ExtractedContent = a.settings.Secrets.Redact(res.ExtractedContent)
	res.Error = a.settings.Secrets.Redact(res.Error)

	h.Steps = append(h.Steps, StepRecord{
		Number: len(h.Steps) + 1,
		Action: name,
		Params: params,
		Result: res,
	})
	if res.Failed() {
		a.logger.Warn("Action failed", zap.String("action", name), zap.String("error", res.Error))
	} else {
		a.logger.Debug("Action executed", zap.String("action", name))
	}
	return res
}

// planningError marks a bad plan, which counts as a failed step rather than ending the run.
type planningError struct{ err error }

func (e *planningError) Error() string { return "invalid plan: " + e.err.Error() }
func (e *planningError) Unwrap() error { return e.err }

func (a *Agent) plan(ctx context.Context, h History) (plannedAction, error) {
	obs, err := a.controller.Observe(ctx, a.page)
	if err != nil {
		return plannedAction{}, &planningError{err}
	}

	raw, err := a.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: a.settings.Secrets.Redact(a.systemPrompt()),
		UserPrompt:   a.settings.Secrets.Redact(a.userPrompt(obs, h)),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return plannedAction{}, fmt.Errorf("planner request failed: %w", err)
	}

	plan, err := llmutil.ParseJSONResponse[plannedAction](raw)
	if err != nil {
		return plannedAction{}, &planningError{err}
	}
	if plan.Action == "" {
		return plannedAction{}, &planningError{errors.New("response has no action")}
	}
	if !a.controller.Has(plan.Action) {
		return plannedAction{}, &planningError{fmt.Errorf("unknown action %q", plan.Action)}
	}
	if plan.Thought != "" {
		a.logger.Debug("Planner thought", zap.String("thought", plan.Thought))
	}
	return *plan, nil
}

func (a *Agent) systemPrompt() string {
	return `You control a web browser to complete a task. Each turn you see the current page and the results of earlier actions.
Choose exactly one next action from this list:
` + a.controller.Describe() + `
Elements are referred to by the number in square brackets. Values written as <secret>name</secret> are filled in for you; use the placeholder as-is.
When the task is complete, call done with the requested result as text.
Respond with a single JSON object: {"thought": "...", "action": "<name>", "params": {...}}`
}

const maxMemory = 12000

func (a *Agent) userPrompt(obs Observation, h History) string {
	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(strings.TrimSpace(a.settings.Task))
	b.WriteString("\n\nPrevious actions:\n")

	var memory []string
	for _, s := range h.Steps {
		line := fmt.Sprintf("%d. %s", s.Number, s.Action)
		switch {
		case s.Result.Failed():
			line += " -> error: " + s.Result.Error
		case s.Result.IncludeInMemory && s.Result.ExtractedContent != "":
			line += " -> " + s.Result.ExtractedContent
		}
		memory = append(memory, line)
	}
	text := truncateHead(strings.Join(memory, "\n"), maxMemory)
	if text == "" {
		text = "(none)"
	}
	b.WriteString(text)
	b.WriteString("\n\nCurrent page:\n")
	b.WriteString(obs.String())
	return b.String()
}

// truncateHead keeps at most limit trailing bytes of text, starting on a rune
// boundary, and marks the cut with "...".
func truncateHead(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	start := len(text) - limit
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return "..." + text[start:]
}
