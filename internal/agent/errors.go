package agent

import (
	"errors"
	"fmt"
	"strings"

	"agentsvc/internal/schema"
)

// ErrorKind classifies a fatal run failure.
type ErrorKind string

const (
	ToolLoopExceeded       ErrorKind = "tool_loop_exceeded"
	SchemaValidationFailed ErrorKind = "schema_validation_failed"
	ModelUnavailable       ErrorKind = "model_unavailable"
	Timeout                ErrorKind = "timeout"
	UnknownTaskType        ErrorKind = "unknown_task_type"
	Canceled               ErrorKind = "canceled"
)

// AgentError is the only error type a run returns. Tool failures and schema
// violations inside the retry budget never surface as AgentError.
type AgentError struct {
	Kind       ErrorKind
	Agent      string
	Detail     string
	Violations []schema.Violation
	Err        error
}

func (e *AgentError) Error() string {
	switch e.Kind {
	case UnknownTaskType:
		return "Unknown task type: " + e.Detail
	case SchemaValidationFailed:
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.String())
		}
		msg := "schema validation failed: " + e.Detail
		if len(parts) > 0 {
			msg += ": " + strings.Join(parts, "; ")
		}
		return msg
	case ToolLoopExceeded:
		return "tool loop exceeded: " + e.Detail
	case ModelUnavailable:
		return "model unavailable: " + e.Detail
	case Timeout:
		return "run timed out: " + e.Detail
	case Canceled:
		return "run canceled: " + e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the AgentError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	return ""
}

// NewUnknownTaskType reports a task type no agent handles.
func NewUnknownTaskType(taskType string) *AgentError {
	return &AgentError{Kind: UnknownTaskType, Detail: taskType}
}
