package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"

	"agentsvc/internal/agent/ports"
	"agentsvc/internal/utils/id"
)

// argumentsString renders tool call arguments the way chat-completion APIs expect them.
func argumentsString(args json.RawMessage) string {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return "{}"
	}
	return trimmed
}

// parametersOrEmpty never hands a nil schema to a provider.
func parametersOrEmpty(schema *jsonschema.Schema) *jsonschema.Schema {
	if schema != nil {
		return schema
	}
	return &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
}

// propertiesOf returns the members of an object schema as a JSON-ready value.
func propertiesOf(schema *jsonschema.Schema) any {
	if schema == nil || schema.Properties == nil {
		return map[string]any{}
	}
	return schema.Properties
}

func filterTools(tools []ports.ToolDefinition) []ports.ToolDefinition {
	out := make([]ports.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		if ports.ValidToolName(tool.Name) {
			out = append(out, tool)
		}
	}
	return out
}

// unsendableToolCalls collects the IDs of assistant tool calls whose names a
// provider would reject. Such a call and its tool reply are dropped together.
func unsendableToolCalls(msgs []ports.Message) map[string]bool {
	var dropped map[string]bool
	for _, msg := range msgs {
		for _, call := range msg.ToolCalls {
			if ports.ValidToolName(call.Name) {
				continue
			}
			if dropped == nil {
				dropped = map[string]bool{}
			}
			dropped[call.ID] = true
		}
	}
	return dropped
}

// runIDOf names the run a request belongs to, for log prefixes.
func runIDOf(ctx context.Context, metadata map[string]any) string {
	if runID, ok := metadata["run_id"].(string); ok && runID != "" {
		return runID
	}
	return id.RunIDFromContext(ctx)
}
