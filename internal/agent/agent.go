package agent

import (
	"fmt"
	"strings"
	"time"

	"agentsvc/internal/agent/ports"
	"agentsvc/internal/logging"
	"agentsvc/internal/observability"
	"agentsvc/internal/schema"
	"agentsvc/internal/tools"
)

// Run bounds. A model that keeps asking for tools or keeps producing invalid
// output is stopped by these ceilings.
const (
	DefaultMaxToolRounds        = 5
	DefaultMaxValidationRetries = 2
	DefaultCallTimeout          = 30 * time.Second
	DefaultRunTimeout           = 90 * time.Second
	DefaultTemperature          = 0.2
	DefaultMaxTokens            = 1024
)

// Agent binds a model, an instruction, an output contract and a tool set.
// It is built once and never mutated, so any number of runs may share it.
type Agent struct {
	name         string
	instructions string
	model        ports.LLMClient
	output       *schema.Schema
	tools        *tools.Registry
	systemPrompt string

	maxToolRounds        int
	maxValidationRetries int
	callTimeout          time.Duration
	runTimeout           time.Duration
	temperature          float64
	maxTokens            int

	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
}

type options struct {
	instructions         string
	tools                []tools.Spec
	maxToolRounds        int
	maxValidationRetries int
	callTimeout          time.Duration
	runTimeout           time.Duration
	temperature          float64
	maxTokens            int
	logger               logging.Logger
	metrics              *observability.MetricsCollector
	tracer               *observability.TracerProvider
}

// Option configures an Agent at construction.
type Option func(*options)

func WithInstructions(text string) Option {
	return func(o *options) { o.instructions = text }
}

func WithTools(specs ...tools.Spec) Option {
	return func(o *options) { o.tools = append(o.tools, specs...) }
}

func WithMaxToolRounds(n int) Option {
	return func(o *options) { o.maxToolRounds = n }
}

func WithMaxValidationRetries(n int) Option {
	return func(o *options) { o.maxValidationRetries = n }
}

func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

func WithRunTimeout(d time.Duration) Option {
	return func(o *options) { o.runTimeout = d }
}

func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(o *options) { o.metrics = metrics }
}

func WithTracer(tracer *observability.TracerProvider) Option {
	return func(o *options) { o.tracer = tracer }
}

// New validates the configuration and freezes the tool set.
func New(name string, model ports.LLMClient, output *schema.Schema, opts ...Option) (*Agent, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if model == nil {
		return nil, fmt.Errorf("agent %s: model is required", name)
	}
	if output == nil {
		return nil, fmt.Errorf("agent %s: output schema is required", name)
	}

	o := options{
		maxToolRounds:        DefaultMaxToolRounds,
		maxValidationRetries: DefaultMaxValidationRetries,
		callTimeout:          DefaultCallTimeout,
		runTimeout:           DefaultRunTimeout,
		temperature:          DefaultTemperature,
		maxTokens:            DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case o.maxToolRounds < 0:
		return nil, fmt.Errorf("agent %s: max tool rounds must not be negative", name)
	case o.maxValidationRetries < 0:
		return nil, fmt.Errorf("agent %s: max validation retries must not be negative", name)
	case o.callTimeout <= 0 || o.runTimeout <= 0:
		return nil, fmt.Errorf("agent %s: timeouts must be positive", name)
	}

	registry, err := tools.NewRegistry(o.tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	registry.Freeze()

	logger := o.logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("agent/" + name)
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = observability.NoopTracer()
	}

	a := &Agent{
		name:                 name,
		instructions:         strings.TrimSpace(o.instructions),
		model:                model,
		output:               output,
		tools:                registry,
		maxToolRounds:        o.maxToolRounds,
		maxValidationRetries: o.maxValidationRetries,
		callTimeout:          o.callTimeout,
		runTimeout:           o.runTimeout,
		temperature:          o.temperature,
		maxTokens:            o.maxTokens,
		logger:               logger,
		metrics:              o.metrics,
		tracer:               tracer,
	}
	a.systemPrompt = buildSystemPrompt(a.instructions, output, registry.Definitions())
	return a, nil
}

func (a *Agent) Name() string { return a.name }
func (a *Agent) Model() string { return a.model.Model() }
func (a *Agent) Output() *schema.Schema { return a.output }
func (a *Agent) SystemPrompt() string { return a.systemPrompt }
func (a *Agent) Tools() []ports.ToolDefinition { return a.tools.Definitions() }
func (a *Agent) MaxToolRounds() int { return a.maxToolRounds }
func (a *Agent) MaxValidationRetries() int { return a.maxValidationRetries }
func (a *Agent) Timeouts() (call, run time.Duration) { return a.callTimeout, a.runTimeout }
