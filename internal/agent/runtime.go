package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"agentsvc/internal/agent/ports"
	agenterrors "agentsvc/internal/errors"
	"agentsvc/internal/observability"
	"agentsvc/internal/schema"
	"agentsvc/internal/utils/id"
)

// run is the mutable state of a single Run call. It never outlives the call.
type run struct {
	agent    *Agent
	rc       *ports.RunContext
	state    State
	messages []ports.Message
	result   *RunResult
	start    time.Time
}

// Run drives one request to a validated output or a fatal *AgentError.
// rc may be nil; tools then see an empty context. On failure the partial
// result is returned alongside the error so callers can inspect the trace.
func (a *Agent) Run(ctx context.Context, input string, rc *ports.RunContext) (*RunResult, error) {
	if rc == nil {
		rc = ports.RunContextFromMap(nil)
	}
	runID := id.RunIDFromContext(ctx)
	if runID == "" {
		runID = id.NewRunID()
		ctx = id.WithRunID(ctx, runID)
	}

	runCtx, cancel := context.WithTimeout(ctx, a.runTimeout)
	defer cancel()
	runCtx, span := a.tracer.StartSpan(runCtx, observability.SpanAgentRun,
		attribute.String(observability.AttrAgent, a.name),
		attribute.String(observability.AttrModel, a.model.Model()),
	)

	r := &run{
		agent:    a,
		rc:       rc,
		state:    StateIdle,
		messages: initialMessages(a.systemPrompt, input),
		result:   &RunResult{RunID: runID, Agent: a.name, States: []State{StateIdle}},
		start:    time.Now(),
	}

	a.logger.Info("Run %s started (input=%d bytes, tools=%d)", runID, len(input), len(a.tools.Names()))
	result, err := r.loop(ctx, runCtx)
	r.result.Duration = time.Since(r.start)

	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		a.logger.Warn("Run %s failed after %v: %v", runID, r.result.Duration, err)
	} else {
		a.logger.Info("Run %s completed in %v (model_calls=%d, rounds=%d)", runID, r.result.Duration, r.result.ModelCalls, r.result.Rounds)
	}
	span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
	observability.EndSpan(span, err)
	a.metrics.RecordAgentRun(ctx, a.name, outcome, r.result.Duration)

	if err != nil {
		return r.result, err
	}
	return result, nil
}

func (r *run) loop(parent, runCtx context.Context) (*RunResult, error) {
	a := r.agent
	validationFailures := 0

	if err := r.transition(StateAwaitingModel); err != nil {
		return nil, err
	}
	for {
		resp, err := r.callModel(runCtx)
		if err != nil {
			return nil, r.fail(r.modelError(parent, runCtx, err))
		}

		if len(resp.ToolCalls) > 0 {
			if err := r.transition(StateToolRequested); err != nil {
				return nil, err
			}
			r.result.Rounds++
			if r.result.Rounds > a.maxToolRounds {
				return nil, r.fail(&AgentError{
					Kind:   ToolLoopExceeded,
					Agent:  a.name,
					Detail: fmt.Sprintf("model requested tools in more than %d rounds", a.maxToolRounds),
				})
			}
			a.logger.Debug("=== Round %d/%d: %d tool call(s) ===", r.result.Rounds, a.maxToolRounds, len(resp.ToolCalls))

			calls := assignCallIDs(resp.ToolCalls, r.result.Rounds)
			r.messages = append(r.messages, ports.Message{
				Role:      ports.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: calls,
			})
			invocations, messages := a.executeTools(runCtx, r.rc, r.result.Rounds, calls)
			r.result.Trace = append(r.result.Trace, invocations...)
			if ctxErr := runCtx.Err(); ctxErr != nil {
				return nil, r.fail(r.contextError(parent, ctxErr, "while running tools"))
			}
			r.messages = append(r.messages, messages...)

			if err := r.transition(StateAwaitingModel); err != nil {
				return nil, err
			}
			continue
		}

		if err := r.transition(StateValidating); err != nil {
			return nil, err
		}
		r.result.ValidationAttempts++
		validated, err := a.output.ValidateJSON(resp.Content)
		if err == nil {
			r.result.Output = validated
			if err := r.transition(StateDone); err != nil {
				return nil, err
			}
			return r.result, nil
		}

		var schemaErr *schema.SchemaError
		if !errors.As(err, &schemaErr) {
			return nil, r.fail(&AgentError{Kind: SchemaValidationFailed, Agent: a.name, Detail: err.Error(), Err: err})
		}
		validationFailures++
		if validationFailures > a.maxValidationRetries {
			return nil, r.fail(&AgentError{
				Kind:       SchemaValidationFailed,
				Agent:      a.name,
				Detail:     fmt.Sprintf("%s output still invalid after %d attempt(s)", a.output.Name(), r.result.ValidationAttempts),
				Violations: schemaErr.Violations,
				Err:        schemaErr,
			})
		}

		a.logger.Debug("Output rejected (attempt %d/%d): %v", validationFailures, a.maxValidationRetries+1, schemaErr)
		a.metrics.RecordSchemaRetry(runCtx, a.name)
		r.messages = append(r.messages,
			ports.Message{Role: ports.RoleAssistant, Content: resp.Content},
			ports.Message{Role: ports.RoleUser, Content: schemaErr.Feedback()},
		)
		if err := r.transition(StateAwaitingModel); err != nil {
			return nil, err
		}
	}
}

func (r *run) callModel(runCtx context.Context) (*ports.CompletionResponse, error) {
	a := r.agent
	callCtx, cancel := context.WithTimeout(runCtx, a.callTimeout)
	defer cancel()
	callCtx, span := a.tracer.StartSpan(callCtx, observability.SpanModelCall,
		attribute.String(observability.AttrModel, a.model.Model()),
		attribute.Int(observability.AttrRound, r.result.Rounds),
	)

	req := ports.CompletionRequest{
		Messages:    append([]ports.Message(nil), r.messages...),
		Tools:       a.tools.Definitions(),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		ResponseFormat: &ports.ResponseFormat{
			Name:        a.output.Name(),
			Description: a.output.Description(),
			Schema:      a.output.JSONSchema(),
		},
		Metadata: map[string]any{
			"run_id": r.result.RunID,
			"agent":  a.name,
		},
	}

	start := time.Now()
	a.logger.Debug("Calling model %s (messages=%d)", a.model.Model(), len(req.Messages))
	resp, err := a.model.Complete(callCtx, req)
	latency := time.Since(start)
	r.result.ModelCalls++

	status := "success"
	if err == nil && resp == nil {
		err = fmt.Errorf("model returned an empty response")
	}
	if err != nil {
		status = "error"
		a.metrics.RecordLLMRequest(runCtx, a.model.Model(), status, latency, 0, 0)
		observability.EndSpan(span, err)
		return nil, err
	}

	r.result.Usage.Add(resp.Usage)
	a.metrics.RecordLLMRequest(runCtx, a.model.Model(), status, latency, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	observability.EndSpan(span, nil)
	a.logger.Debug("Model replied in %v: content=%d bytes, tool_calls=%d", latency, len(resp.Content), len(resp.ToolCalls))
	return resp, nil
}

// modelError maps a failed model call onto the run's error taxonomy. The
// parent context distinguishes caller cancellation from the run deadline.
func (r *run) modelError(parent, runCtx context.Context, err error) *AgentError {
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return r.contextError(parent, ctxErr, "while waiting for the model")
	}
	detail := agenterrors.Describe(err)
	if errors.Is(err, context.DeadlineExceeded) {
		detail = fmt.Sprintf("model call exceeded %v", r.agent.callTimeout)
	}
	return &AgentError{Kind: ModelUnavailable, Agent: r.agent.name, Detail: detail, Err: err}
}

func (r *run) contextError(parent context.Context, ctxErr error, where string) *AgentError {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return &AgentError{Kind: Canceled, Agent: r.agent.name, Detail: "request canceled " + where, Err: parent.Err()}
	}
	return &AgentError{
		Kind:   Timeout,
		Agent:  r.agent.name,
		Detail: fmt.Sprintf("run exceeded %v %s", r.agent.runTimeout, where),
		Err:    ctxErr,
	}
}

func (r *run) transition(to State) error {
	if !canTransition(r.state, to) {
		return r.fail(&AgentError{
			Kind:   ModelUnavailable,
			Agent:  r.agent.name,
			Detail: fmt.Sprintf("illegal state transition %s -> %s", r.state, to),
		})
	}
	r.state = to
	r.result.States = append(r.result.States, to)
	return nil
}

func (r *run) fail(err *AgentError) *AgentError {
	if r.state != StateFailed && r.state != StateDone {
		r.state = StateFailed
		r.result.States = append(r.result.States, StateFailed)
	}
	return err
}
