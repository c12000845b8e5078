package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/api/schemas"
)

// ErrEmptyMessage is returned for a blank user message.
var ErrEmptyMessage = errors.New("message must not be empty")

// Launcher starts a search run without blocking the caller and returns its id.
type Launcher interface {
	Launch(prompt string) string
}

// transition handles one message at a given step. It mutates next and
// returns the assistant reply.
type transition func(ctx context.Context, next *State, message string) (string, error)

// Engine drives the slot-filling conversation.
type Engine struct {
	llm         schemas.LLMClient
	launcher    Launcher
	siteURL     string
	logger      *zap.Logger
	transitions map[Step]transition
}

// NewEngine wires the state machine to a model and a launcher.
func NewEngine(llm schemas.LLMClient, launcher Launcher, siteURL string, logger *zap.Logger) *Engine {
	e := &Engine{
		llm:      llm,
		launcher: launcher,
		siteURL:  siteURL,
		logger:   logger.Named("chat"),
	}
	e.transitions = map[Step]transition{
		StepAwaitingGrantType: e.onGrantType,
		StepAwaitingKeyword:   e.onKeyword,
		StepAwaitingDeadline:  e.onDeadline,
		StepConversing:        e.converse,
	}
	return e
}

// Handle applies one user message to state and returns the next state and the reply.
// On error the returned state is the input, unchanged.
func (e *Engine) Handle(ctx context.Context, state State, message string) (State, string, error) {
	if strings.TrimSpace(message) == "" {
		return state, "", ErrEmptyMessage
	}

	next := state.Clone()
	step := next.Step.normalize()
	next.Step = step
	next.History = append(next.History, Turn{Role: schemas.RoleUser, Content: message})

	reply, err := e.transitions[step](ctx, &next, message)
	if err != nil {
		return state, "", err
	}

	next.History = append(next.History, Turn{Role: schemas.RoleAI, Content: reply})
	e.logger.Debug("Chat turn handled",
		zap.Stringer("from", step),
		zap.Stringer("to", next.Step),
	)
	return next, reply, nil
}

func (e *Engine) onGrantType(ctx context.Context, next *State, message string) (string, error) {
	next.GrantType = message

	ex := e.extract(ctx, message)
	if ex.Keyword != "" {
		next.Keyword = ex.Keyword
	}
	if ex.Deadline != "" {
		next.Deadline = ex.Deadline
	}

	switch {
	case ex.Keyword == "":
		next.Step = StepAwaitingKeyword
		return replyAskKeyword, nil
	case ex.Deadline == "":
		next.Step = StepAwaitingDeadline
		return replyAskDeadline, nil
	default:
		next.Step = StepConversing
		e.launch(SearchPromptFromDescription(e.siteURL, *next))
		return replySearching, nil
	}
}

func (e *Engine) onKeyword(_ context.Context, next *State, message string) (string, error) {
	next.Keyword = message
	next.Step = StepAwaitingDeadline
	return replyAskDeadline, nil
}

func (e *Engine) onDeadline(_ context.Context, next *State, message string) (string, error) {
	next.Deadline = message
	next.Step = StepConversing
	e.launch(SearchPromptFromAnswers(e.siteURL, *next))
	return replySearching, nil
}

func (e *Engine) converse(ctx context.Context, next *State, _ string) (string, error) {
	reply, err := e.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: conciseInstruction,
		Messages:     next.messages(),
		Tier:         schemas.TierFast,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// extract is best effort: any failure counts as both slots absent.
func (e *Engine) extract(ctx context.Context, description string) Extraction {
	raw, err := e.llm.Generate(ctx, schemas.GenerationRequest{
		UserPrompt: extractionPrompt(description),
		Tier:       schemas.TierFast,
		Options:    schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		e.logger.Warn("Slot extraction request failed", zap.Error(err))
		return Extraction{}
	}

	ex, err := ParseExtraction(raw)
	if err != nil {
		e.logger.Warn("Slot extraction returned unparseable output", zap.Error(err))
		return Extraction{}
	}
	return ex
}

func (e *Engine) launch(prompt string) {
	id := e.launcher.Launch(prompt)
	e.logger.Info("Search launched", zap.String("task_id", id))
}
