package provider

import "fmt"

// Role describes the purpose a provider serves in the system.
type Role string

// Role constants for provider chain configuration. Chat turns use
// RolePrimary; memory compaction uses RoleInternal so it can be pointed at
// a cheaper model.
const (
	RolePrimary  Role = "primary"
	RoleInternal Role = "internal"
	RoleFallback Role = "fallback"
)

// ParseRole converts a config string into a Role. An empty string is
// RolePrimary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RolePrimary:
		return RolePrimary, nil
	case RoleInternal:
		return RoleInternal, nil
	case RoleFallback:
		return RoleFallback, nil
	default:
		return "", fmt.Errorf("provider: unknown role %q (want primary, internal or fallback)", s)
	}
}

// MessageRole identifies the sender of a message in a conversation.
type MessageRole string

// MessageRole constants for conversation messages.
const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// LLMMessage is one entry of the ordered list sent to the model.
type LLMMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// CompletionRequest is the input to a Provider.Complete call.
type CompletionRequest struct {
	Messages    []LLMMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// CompletionResponse is the output of a Provider.Complete call.
type CompletionResponse struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption for a completion, when the backend
// reports it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TotalChars returns the summed content length, in characters, of msgs.
func TotalChars(msgs []LLMMessage) int {
	n := 0
	for _, m := range msgs {
		n += len([]rune(m.Content))
	}
	return n
}
