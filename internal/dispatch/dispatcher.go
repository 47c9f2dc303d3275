package dispatch

import (
	"context"
	"fmt"

	"agentsvc/internal/agent"
	"agentsvc/internal/agent/ports"
	"agentsvc/internal/logging"
)

// Task types accepted by Dispatch.
const (
	TaskAnalysis = "analysis"
	TaskQA       = "qa"
)

// Runner is the part of *agent.Agent the dispatcher depends on.
type Runner interface {
	Name() string
	Run(ctx context.Context, input string, rc *ports.RunContext) (*agent.RunResult, error)
}

// Payload carries the task inputs. Content feeds analysis, Question feeds qa.
type Payload struct {
	Content  string
	Question string
	Context  *ports.RunContext
}

// Dispatcher routes a task to the agent that handles it. It holds no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	analysis Runner
	qa       Runner
	logger   logging.Logger
}

// Option configures optional dependencies of the dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the default dispatcher logger.
func WithLogger(logger logging.Logger) Option {
	return func(d *Dispatcher) {
		if !logging.IsNil(logger) {
			d.logger = logger
		}
	}
}

func New(analysis, qa Runner, opts ...Option) (*Dispatcher, error) {
	if analysis == nil || qa == nil {
		return nil, fmt.Errorf("dispatcher requires both analysis and qa agents")
	}
	d := &Dispatcher{
		analysis: analysis,
		qa:       qa,
		logger:   logging.NewComponentLogger("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// TaskTypes lists the accepted task types.
func (d *Dispatcher) TaskTypes() []string {
	return []string{TaskAnalysis, TaskQA}
}

// KnownTaskType reports whether Dispatch accepts taskType.
func KnownTaskType(taskType string) bool {
	return taskType == TaskAnalysis || taskType == TaskQA
}

// Dispatch runs the agent selected by taskType. An unknown task type fails
// with an UnknownTaskType *agent.AgentError before any agent runs.
func (d *Dispatcher) Dispatch(ctx context.Context, taskType string, payload Payload) (*agent.RunResult, error) {
	var (
		runner Runner
		input  string
	)
	switch taskType {
	case TaskAnalysis:
		runner, input = d.analysis, payload.Content
	case TaskQA:
		runner, input = d.qa, payload.Question
	default:
		d.logger.Warn("Rejected unknown task type %q", taskType)
		return nil, agent.NewUnknownTaskType(taskType)
	}

	rc := payload.Context
	if rc == nil {
		rc = ports.RunContextFromMap(nil)
	}
	if _, present := rc.Value(ports.KnowledgeBaseKey); present && !rc.HasKnowledgeBase() {
		d.logger.Warn("Ignoring %s: expected a JSON object", ports.KnowledgeBaseKey)
	}

	d.logger.Debug("Dispatching %s task to agent %s", taskType, runner.Name())
	return runner.Run(ctx, input, rc)
}

// Analyze runs the analysis agent on content.
func (d *Dispatcher) Analyze(ctx context.Context, content string, rc *ports.RunContext) (*agent.RunResult, error) {
	return d.Dispatch(ctx, TaskAnalysis, Payload{Content: content, Context: rc})
}

// Answer runs the qa agent on question.
func (d *Dispatcher) Answer(ctx context.Context, question string, rc *ports.RunContext) (*agent.RunResult, error) {
	return d.Dispatch(ctx, TaskQA, Payload{Question: question, Context: rc})
}
