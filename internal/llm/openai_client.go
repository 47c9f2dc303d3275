package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"agentsvc/internal/agent/ports"
	svcerrors "agentsvc/internal/errors"
	"agentsvc/internal/logging"
)

// errMissingCredential is reported on first use when no API key is configured.
var errMissingCredential = errors.New("missing api key")

// openaiClient speaks the chat completions API, either to Azure OpenAI
// (deployment-scoped URLs, api-version query) or to OpenAI itself.
type openaiClient struct {
	client   *openai.Client
	model    string
	provider string
	hasKey   bool
	logger   logging.Logger
}

// NewAzureOpenAIClient targets an Azure OpenAI deployment.
func NewAzureOpenAIClient(cfg Config) (ports.LLMClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("azure deployment name is required")
	}
	oaiCfg := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimRight(cfg.Endpoint, "/"))
	if cfg.APIVersion != "" {
		oaiCfg.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Model
	oaiCfg.AzureModelMapperFunc = func(string) string { return deployment }
	oaiCfg.HTTPClient = cfg.httpClient()

	return &openaiClient{
		client:   openai.NewClientWithConfig(oaiCfg),
		model:    cfg.Model,
		provider: ProviderAzure,
		hasKey:   cfg.APIKey != "",
		logger:   logging.NewComponentLogger("azure-openai"),
	}, nil
}

// NewOpenAIClient targets the OpenAI API or any compatible endpoint.
func NewOpenAIClient(cfg Config) (ports.LLMClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oaiCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	oaiCfg.HTTPClient = cfg.httpClient()

	return &openaiClient{
		client:   openai.NewClientWithConfig(oaiCfg),
		model:    cfg.Model,
		provider: ProviderOpenAI,
		hasKey:   cfg.APIKey != "",
		logger:   logging.NewComponentLogger("openai"),
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if !c.hasKey {
		return nil, svcerrors.NewPermanentError(errMissingCredential, "model credential is not configured")
	}

	prefix := ""
	if runID := runIDOf(ctx, req.Metadata); runID != "" {
		prefix = fmt.Sprintf("[run:%s] ", runID)
	}

	oaiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if tools := filterTools(req.Tools); len(tools) > 0 {
		oaiReq.Tools = convertOpenAITools(tools)
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Schema != nil {
		oaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.ResponseFormat.Name,
				Description: req.ResponseFormat.Description,
				Schema:      req.ResponseFormat.Schema,
				Strict:      false,
			},
		}
	}

	c.logger.Debug("%s=== LLM Request ===", prefix)
	c.logger.Debug("%sProvider: %s Model: %s Messages: %d Tools: %d", prefix, c.provider, c.model, len(oaiReq.Messages), len(oaiReq.Tools))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		c.logger.Debug("%sRequest failed after %v: %v", prefix, time.Since(start), err)
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, svcerrors.NewPermanentError(errors.New("empty choices"), "model returned no choices")
	}

	choice := resp.Choices[0]
	out := &ports.CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: ports.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(argumentsString([]byte(tc.Function.Arguments))),
		})
	}

	c.logger.Debug("%s=== LLM Response === stop=%s tool_calls=%d tokens=%d (%v)",
		prefix, out.StopReason, len(out.ToolCalls), out.Usage.TotalTokens, time.Since(start))
	return out, nil
}

func convertOpenAIMessages(msgs []ports.Message) []openai.ChatCompletionMessage {
	dropped := unsendableToolCalls(msgs)
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == ports.RoleTool && dropped[msg.ToolCallID] {
			continue
		}
		converted := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == ports.RoleTool {
			converted.Name = msg.Name
		}
		for _, call := range msg.ToolCalls {
			if dropped[call.ID] {
				continue
			}
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: argumentsString(call.Arguments),
				},
			})
		}
		if msg.Role == ports.RoleAssistant && len(msg.ToolCalls) > 0 && len(converted.ToolCalls) == 0 && msg.Content == "" {
			continue
		}
		out = append(out, converted)
	}
	return out
}

func convertOpenAITools(tools []ports.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  parametersOrEmpty(tool.Parameters),
			},
		})
	}
	return out
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return svcerrors.FromHTTPStatus(err, apiErr.HTTPStatusCode,
			fmt.Sprintf("model API error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return svcerrors.FromHTTPStatus(err, reqErr.HTTPStatusCode,
			fmt.Sprintf("model request failed with status %d", reqErr.HTTPStatusCode))
	}
	return err
}
