package chat

import "github.com/xkilldash9x/grantscout/api/schemas"

// Step is the position of a conversation in the slot-filling flow.
type Step int

const (
	StepAwaitingGrantType Step = 1
	StepAwaitingKeyword   Step = 2
	StepAwaitingDeadline  Step = 3
	StepConversing        Step = 4
)

func (s Step) String() string {
	switch s {
	case StepAwaitingGrantType:
		return "awaiting_grant_type"
	case StepAwaitingKeyword:
		return "awaiting_keyword"
	case StepAwaitingDeadline:
		return "awaiting_deadline"
	default:
		return "conversing"
	}
}

// normalize folds anything past the last slot into StepConversing and
// treats an unset step as a fresh conversation.
func (s Step) normalize() Step {
	switch {
	case s < StepAwaitingGrantType:
		return StepAwaitingGrantType
	case s > StepConversing:
		return StepConversing
	default:
		return s
	}
}

// Greeting is the first turn of every conversation.
const Greeting = "Hi! What type of grant are you looking for?"

// Turn is one role-attributed entry of the conversation history.
type Turn struct {
	Role    schemas.Role `json:"role"`
	Content string       `json:"content"`
}

// State is everything the server remembers about one conversation.
type State struct {
	Step      Step   `json:"step"`
	GrantType string `json:"grant_type,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	Deadline  string `json:"deadline,omitempty"`
	History   []Turn `json:"history"`
}

// NewState returns a conversation at step 1 holding only the greeting.
func NewState() State {
	return State{
		Step:    StepAwaitingGrantType,
		History: []Turn{{Role: schemas.RoleAI, Content: Greeting}},
	}
}

// Clone returns a copy whose history can be appended to without touching s.
func (s State) Clone() State {
	out := s
	out.History = make([]Turn, len(s.History), len(s.History)+2)
	copy(out.History, s.History)
	return out
}

func (s State) messages() []schemas.Message {
	msgs := make([]schemas.Message, len(s.History))
	for i, t := range s.History {
		msgs[i] = schemas.Message{Role: t.Role, Content: t.Content}
	}
	return msgs
}
