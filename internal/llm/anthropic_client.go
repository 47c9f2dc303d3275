package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentsvc/internal/agent/ports"
	svcerrors "agentsvc/internal/errors"
	"agentsvc/internal/logging"
)

const defaultAnthropicMaxTokens = 1024

// anthropicClient speaks the Messages API. Structured output is requested
// through the system prompt because the API has no response schema field.
type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
	hasKey    bool
	logger    logging.Logger
}

func NewAnthropicClient(cfg Config) (ports.LLMClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
		// Retries belong to the retry client.
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &anthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		hasKey:    cfg.APIKey != "",
		logger:    logging.NewComponentLogger("anthropic"),
	}, nil
}

func (c *anthropicClient) Model() string {
	return c.model
}

func (c *anthropicClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if !c.hasKey {
		return nil, svcerrors.NewPermanentError(errMissingCredential, "model credential is not configured")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	prefix := ""
	if runID := runIDOf(ctx, req.Metadata); runID != "" {
		prefix = fmt.Sprintf("[run:%s] ", runID)
	}
	system, messages := convertAnthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if tools := filterTools(req.Tools); len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.logger.Debug("%sRequest failed after %v: %v", prefix, time.Since(start), err)
		return nil, classifyAnthropicError(err)
	}

	out := &ports.CompletionResponse{
		StopReason: string(msg.StopReason),
		Usage: ports.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
				ID:        v.ID,
				Name:      v.Name,
				Arguments: []byte(argumentsString(v.Input)),
			})
		}
	}
	out.Content = text.String()

	c.logger.Debug("%sResponse stop=%s tool_calls=%d tokens=%d (%v)",
		prefix, out.StopReason, len(out.ToolCalls), out.Usage.TotalTokens, time.Since(start))
	return out, nil
}

// convertAnthropicMessages lifts system turns into the system prompt and
// groups consecutive tool results into a single user turn.
func convertAnthropicMessages(msgs []ports.Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion
	dropped := unsendableToolCalls(msgs)

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case ports.RoleSystem:
			system = append(system, msg.Content)
		case ports.RoleTool:
			if dropped[msg.ToolCallID] {
				continue
			}
			isError := strings.HasPrefix(msg.Content, "Error:")
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isError))
		case ports.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				if dropped[call.ID] {
					continue
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    call.ID,
					Name:  call.Name,
					Input: json.RawMessage(argumentsString(call.Arguments)),
				}})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return strings.Join(system, "\n\n"), out
}

func convertAnthropicTools(tools []ports.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		params := parametersOrEmpty(tool.Parameters)
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: propertiesOf(params),
				Required:   params.Required,
			},
		}})
	}
	return out
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return svcerrors.FromHTTPStatus(err, apiErr.StatusCode,
			fmt.Sprintf("model API error (%d)", apiErr.StatusCode))
	}
	return err
}
