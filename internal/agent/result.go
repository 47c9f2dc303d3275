package agent

import (
	"encoding/json"
	"time"

	"agentsvc/internal/agent/ports"
	"agentsvc/internal/schema"
	"agentsvc/internal/tools"
)

// ToolInvocation is one tool call made during a run, kept for observability.
type ToolInvocation struct {
	Round     int             `json:"round"`
	CallID    string          `json:"call_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    string          `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind tools.ErrorKind `json:"error_kind,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Failed reports whether the invocation was fed back as an error.
func (t ToolInvocation) Failed() bool {
	return t.Error != ""
}

// RunResult is the validated output plus how it was produced.
type RunResult struct {
	RunID              string            `json:"run_id"`
	Agent              string            `json:"agent"`
	Output             *schema.Validated `json:"output"`
	Trace              []ToolInvocation  `json:"trace,omitempty"`
	States             []State           `json:"states"`
	Rounds             int               `json:"rounds"`
	ModelCalls         int               `json:"model_calls"`
	ValidationAttempts int               `json:"validation_attempts"`
	Usage              ports.TokenUsage  `json:"usage"`
	Duration           time.Duration     `json:"duration"`
}
