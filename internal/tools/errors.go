package tools

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a failed tool invocation.
type ErrorKind string

const (
	// InvalidArguments means the arguments did not match the parameter schema.
	// The handler is not called.
	InvalidArguments ErrorKind = "invalid_arguments"
	// HandlerFailure means the handler ran and returned an error.
	HandlerFailure ErrorKind = "handler_failure"
	// UnknownTool means the model asked for a tool that is not registered.
	UnknownTool ErrorKind = "unknown_tool"
)

// ToolError is recoverable within a run: it is reported back to the model
// instead of ending the run.
type ToolError struct {
	Kind        ErrorKind
	Tool        string
	Detail      string
	Suggestions []string
	Err         error
}

func (e *ToolError) Error() string {
	switch e.Kind {
	case InvalidArguments:
		return fmt.Sprintf("tool %s: invalid arguments: %s", e.Tool, e.Detail)
	case UnknownTool:
		return fmt.Sprintf("unknown tool requested: %s", e.Tool)
	default:
		return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Detail)
	}
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ModelMessage is the text placed in the tool turn so the model can adapt.
func (e *ToolError) ModelMessage() string {
	msg := "Error: " + e.Error()
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(". Did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func invalidArguments(tool string, format string, args ...any) *ToolError {
	return &ToolError{Kind: InvalidArguments, Tool: tool, Detail: fmt.Sprintf(format, args...)}
}

// argumentsError lets typed handlers report decoding failures as InvalidArguments.
type argumentsError struct {
	detail string
}

func (e *argumentsError) Error() string {
	return e.detail
}
