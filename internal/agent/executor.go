package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"agentsvc/internal/agent/ports"
	"agentsvc/internal/observability"
	"agentsvc/internal/tools"
)

// assignCallIDs gives every call an ID so tool turns can be matched to the
// assistant turn that requested them.
func assignCallIDs(calls []ports.ToolCall, round int) []ports.ToolCall {
	out := make([]ports.ToolCall, len(calls))
	for i, call := range calls {
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d_%d", round, i+1)
		}
		out[i] = call
	}
	return out
}

// executeTools runs one round of tool calls concurrently. Results are
// returned in request order. Tool failures never abort the round; they are
// rendered as error turns for the model.
func (a *Agent) executeTools(ctx context.Context, rc *ports.RunContext, round int, calls []ports.ToolCall) ([]ToolInvocation, []ports.Message) {
	invocations := make([]ToolInvocation, len(calls))
	messages := make([]ports.Message, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			invocations[i], messages[i] = a.invokeTool(ctx, rc, round, call)
			return nil
		})
	}
	_ = g.Wait()
	return invocations, messages
}

func (a *Agent) invokeTool(ctx context.Context, rc *ports.RunContext, round int, call ports.ToolCall) (ToolInvocation, ports.Message) {
	ctx, span := a.tracer.StartSpan(ctx, observability.SpanToolCall,
		attribute.String(observability.AttrToolName, call.Name),
		attribute.Int(observability.AttrRound, round),
	)
	inv := ToolInvocation{Round: round, CallID: call.ID, Tool: call.Name, Arguments: call.Arguments}
	msg := ports.Message{Role: ports.RoleTool, ToolCallID: call.ID, Name: call.Name}

	start := time.Now()
	result, err := a.tools.Invoke(ctx, call.Name, rc, call.Arguments)
	inv.Duration = time.Since(start)

	if err != nil {
		var toolErr *tools.ToolError
		if !errors.As(err, &toolErr) {
			toolErr = &tools.ToolError{Kind: tools.HandlerFailure, Tool: call.Name, Detail: err.Error(), Err: err}
		}
		inv.Error = toolErr.Error()
		inv.ErrorKind = toolErr.Kind
		msg.Content = toolErr.ModelMessage()
		a.logger.Warn("Tool %s failed in round %d: %v", call.Name, round, toolErr)
		a.metrics.RecordToolExecution(ctx, call.Name, string(toolErr.Kind), inv.Duration)
		observability.EndSpan(span, toolErr)
		return inv, msg
	}

	inv.Output = result.Content
	msg.Content = result.Content
	a.logger.Debug("Tool %s completed in %v (%d bytes)", call.Name, inv.Duration, len(result.Content))
	a.metrics.RecordToolExecution(ctx, call.Name, "success", inv.Duration)
	observability.EndSpan(span, nil)
	return inv, msg
}
