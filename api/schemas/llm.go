package schemas

import "context"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is a single role-attributed turn passed to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Chat replies and slot extraction.
	TierPowerful ModelTier = "powerful" // Browser agent planning.
)

// GenerationOptions controls the text generation process of the LLM.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// GenerationRequest encapsulates a complete request to the LLM.
//
// When Messages is non-empty it is sent as the conversation and UserPrompt is
// ignored. Otherwise UserPrompt becomes a single user turn.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Messages     []Message         `json:"messages,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
