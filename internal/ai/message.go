package ai

import "strings"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider neutral form of a chat call. Provider, when
// set, overrides the configured default for this call only.
// A nil Temperature means 0.7 and a zero MaxTokens means 4000.
type ChatRequest struct {
	Messages     []Message
	SystemPrompt string
	Temperature  *float32
	MaxTokens    int
	Provider     string
}

// Temp returns a temperature for ChatRequest. Temp(0) asks for a
// deterministic answer.
func Temp(v float32) *float32 {
	return &v
}

func (r *ChatRequest) temperature() float32 {
	if r.Temperature == nil {
		return defaultTemperature
	}
	return *r.Temperature
}

// withInlineSystem returns the messages with the system prompt prepended
// as a system message, the form used by OpenAI compatible backends.
func (r *ChatRequest) withInlineSystem() []Message {
	out := make([]Message, 0, len(r.Messages)+1)
	if r.SystemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: r.SystemPrompt})
	}
	return append(out, r.Messages...)
}

// splitSystem separates system messages from the conversation for
// backends that carry the system prompt in a side field. The explicit
// system prompt comes first, followed by every system message in order.
func (r *ChatRequest) splitSystem() (string, []Message) {
	parts := make([]string, 0, 2)
	if r.SystemPrompt != "" {
		parts = append(parts, r.SystemPrompt)
	}
	out := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			if m.Content != "" {
				parts = append(parts, m.Content)
			}
			continue
		}
		out = append(out, m)
	}
	return strings.Join(parts, "\n\n"), out
}
