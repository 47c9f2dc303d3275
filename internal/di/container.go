package di

import (
	"context"
	"fmt"
	"io"

	"agentsvc/internal/agent"
	"agentsvc/internal/agent/ports"
	"agentsvc/internal/config"
	"agentsvc/internal/dispatch"
	svcerrors "agentsvc/internal/errors"
	"agentsvc/internal/llm"
	"agentsvc/internal/logging"
	"agentsvc/internal/observability"
)

// Container holds all application dependencies. It is built once at process
// start; everything in it is immutable afterwards.
type Container struct {
	Config        config.Config
	Observability *observability.Observability
	Model         ports.LLMClient
	Analysis      *agent.Agent
	QA            *agent.Agent
	Dispatcher    *dispatch.Dispatcher
	Logger        logging.Logger
}

// Option customizes BuildContainer.
type Option func(*buildOptions)

type buildOptions struct {
	model     ports.LLMClient
	logOutput io.Writer
	warnings  []string
}

// WithModel replaces the configured model transport, e.g. with a scripted client.
func WithModel(model ports.LLMClient) Option {
	return func(o *buildOptions) { o.model = model }
}

// WithLogOutput redirects structured logs (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(o *buildOptions) { o.logOutput = w }
}

// WithMetadata logs the warnings collected while loading configuration.
func WithMetadata(meta config.Metadata) Option {
	return func(o *buildOptions) { o.warnings = append(o.warnings, meta.Warnings...) }
}

// BuildContainer wires observability, the model transport, both agents and
// the dispatcher from cfg.
func BuildContainer(cfg config.Config, opts ...Option) (*Container, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observability.New(cfg.Observability, o.logOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logging.SetDefault(obs.Logger)
	logger := logging.NewComponentLogger("DI")

	for _, warning := range o.warnings {
		logger.Warn("%s", warning)
	}

	model := o.model
	if model == nil {
		model, err = llm.NewClient(LLMConfig(cfg), RetryConfig(cfg), BreakerConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
	}
	logger.Debug("Model transport %s (deployment=%s, key=%s)",
		cfg.Model.Provider, model.Model(), observability.SanitizeAPIKey(cfg.Model.APIKey))

	agentOpts := AgentOptions(cfg, obs)
	analysis, err := dispatch.NewAnalysisAgent(model, agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis agent: %w", err)
	}
	qa, err := dispatch.NewQAAgent(model, agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create qa agent: %w", err)
	}
	dispatcher, err := dispatch.New(analysis, qa)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	logger.Info("Container built successfully")
	return &Container{
		Config:        cfg,
		Observability: obs,
		Model:         model,
		Analysis:      analysis,
		QA:            qa,
		Dispatcher:    dispatcher,
		Logger:        logger,
	}, nil
}

// Shutdown flushes metrics and traces.
func (c *Container) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.Observability.Shutdown(ctx)
}

// LLMConfig maps the model section onto the transport configuration.
func LLMConfig(cfg config.Config) llm.Config {
	return llm.Config{
		Provider:    cfg.Model.Provider,
		Endpoint:    cfg.Model.Endpoint,
		APIKey:      cfg.Model.APIKey,
		APIVersion:  cfg.Model.APIVersion,
		Model:       cfg.Model.Deployment,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		Timeout:     cfg.Model.Timeout,
	}
}

func RetryConfig(cfg config.Config) svcerrors.RetryConfig {
	return svcerrors.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		JitterFactor: cfg.Retry.JitterFactor,
	}
}

func BreakerConfig(cfg config.Config) svcerrors.CircuitBreakerConfig {
	return svcerrors.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		Timeout:          cfg.CircuitBreaker.OpenTimeout,
	}
}

// AgentOptions applies the run bounds and observability to every agent.
func AgentOptions(cfg config.Config, obs *observability.Observability) []agent.Option {
	opts := []agent.Option{
		agent.WithMaxToolRounds(cfg.Agent.MaxToolRounds),
		agent.WithMaxValidationRetries(cfg.Agent.MaxValidationRetries),
		agent.WithCallTimeout(cfg.Agent.CallTimeout),
		agent.WithRunTimeout(cfg.Agent.RunTimeout),
		agent.WithTemperature(cfg.Model.Temperature),
		agent.WithMaxTokens(cfg.Model.MaxTokens),
	}
	if obs != nil {
		opts = append(opts, agent.WithMetrics(obs.Metrics), agent.WithTracer(obs.Tracer))
	}
	return opts
}
