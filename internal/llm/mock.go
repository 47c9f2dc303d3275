package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"agentsvc/internal/agent/ports"
)

// ScriptedStep is one canned model turn. Exactly one of Response, Err or
// Respond is used, in that order of preference.
type ScriptedStep struct {
	Response *ports.CompletionResponse
	Err      error
	Respond  func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error)
}

// ScriptedClient replays steps in order and records every request.
// The last step repeats once the script is exhausted.
type ScriptedClient struct {
	model string

	mu       sync.Mutex
	steps    []ScriptedStep
	next     int
	requests []ports.CompletionRequest
}

func NewScriptedClient(model string, steps ...ScriptedStep) *ScriptedClient {
	return &ScriptedClient{model: model, steps: steps}
}

// Final is a step returning final content.
func Final(content string) ScriptedStep {
	return ScriptedStep{Response: &ports.CompletionResponse{Content: content, StopReason: "stop"}}
}

// CallTools is a step requesting tool calls.
func CallTools(calls ...ports.ToolCall) ScriptedStep {
	return ScriptedStep{Response: &ports.CompletionResponse{ToolCalls: calls, StopReason: "tool_calls"}}
}

// Fail is a step returning err.
func Fail(err error) ScriptedStep {
	return ScriptedStep{Err: err}
}

func (c *ScriptedClient) Model() string {
	return c.model
}

func (c *ScriptedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	c.mu.Lock()
	req.Messages = append([]ports.Message(nil), req.Messages...)
	c.requests = append(c.requests, req)
	if len(c.steps) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("scripted client %s has no steps", c.model)
	}
	idx := c.next
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	} else {
		c.next++
	}
	step := c.steps[idx]
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case step.Response != nil:
		resp := *step.Response
		return &resp, nil
	case step.Err != nil:
		return nil, step.Err
	case step.Respond != nil:
		return step.Respond(ctx, req)
	}
	return nil, fmt.Errorf("scripted step %d is empty", idx)
}

// Requests returns the requests received so far.
func (c *ScriptedClient) Requests() []ports.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.CompletionRequest(nil), c.requests...)
}

// Calls returns how many requests were received.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// MockClient answers every request with a placeholder object satisfying the
// requested response schema. It lets the service run without credentials.
type MockClient struct {
	model string
}

func NewMockClient(model string) *MockClient {
	if model == "" {
		model = "mock"
	}
	return &MockClient{model: model}
}

func (m *MockClient) Model() string {
	return m.model
}

func (m *MockClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := "This is a mock response for testing. No actual API calls were made."
	if req.ResponseFormat != nil && req.ResponseFormat.Schema != nil {
		data, err := json.Marshal(placeholderFor(req.ResponseFormat.Schema))
		if err != nil {
			return nil, fmt.Errorf("mock payload: %w", err)
		}
		content = string(data)
	}
	return &ports.CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage:      ports.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func placeholderFor(schema *jsonschema.Schema) any {
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}
	switch schema.Type {
	case "object":
		out := map[string]any{}
		if schema.Properties != nil {
			for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
				out[pair.Key] = placeholderFor(pair.Value)
			}
		}
		return out
	case "array":
		if schema.Items != nil {
			return []any{placeholderFor(schema.Items)}
		}
		return []any{}
	case "number":
		if schema.Minimum != "" && schema.Maximum != "" {
			lo, _ := schema.Minimum.Float64()
			hi, _ := schema.Maximum.Float64()
			return (lo + hi) / 2
		}
		return 0.5
	case "integer":
		return 1
	case "boolean":
		return false
	}
	return "mock"
}
