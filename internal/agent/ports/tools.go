package ports

import (
	"encoding/json"
	"regexp"

	"github.com/invopop/jsonschema"
)

// toolNamePattern is the function-name rule shared by the supported providers.
var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidToolName reports whether name can be registered and sent to a provider.
func ValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition is the catalog entry shown to the model.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}
