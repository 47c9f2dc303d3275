package ports

import (
	"context"

	"github.com/invopop/jsonschema"
)

// LLMClient represents any model provider.
type LLMClient interface {
	// Complete sends the conversation and returns either final content or tool calls.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model or deployment identifier.
	Model() string
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// CompletionRequest contains all parameters for one model call.
type CompletionRequest struct {
	Messages       []Message        `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat *ResponseFormat  `json:"response_format,omitempty"`
	Temperature    float64          `json:"temperature,omitempty"`
	MaxTokens      int              `json:"max_tokens,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// ResponseFormat asks providers that support it to constrain the final payload to a JSON schema.
type ResponseFormat struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Schema      *jsonschema.Schema `json:"schema"`
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"`
	Usage      TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Message represents a conversation turn.
// Assistant turns may carry ToolCalls; tool turns carry the ToolCallID they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}
