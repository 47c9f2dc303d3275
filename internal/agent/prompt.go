package agent

import (
	"strings"

	"agentsvc/internal/agent/ports"
	"agentsvc/internal/schema"
)

func buildSystemPrompt(instructions string, output *schema.Schema, defs []ports.ToolDefinition) string {
	var sb strings.Builder
	if instructions != "" {
		sb.WriteString(instructions)
		sb.WriteString("\n\n")
	}
	if len(defs) > 0 {
		sb.WriteString("You may call these tools before answering:\n")
		for _, def := range defs {
			sb.WriteString("- ")
			sb.WriteString(def.Name)
			sb.WriteString(": ")
			sb.WriteString(def.Description)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(output.Describe())
	return sb.String()
}

func initialMessages(systemPrompt, input string) []ports.Message {
	return []ports.Message{
		{Role: ports.RoleSystem, Content: systemPrompt},
		{Role: ports.RoleUser, Content: input},
	}
}
