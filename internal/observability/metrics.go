package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsCollector records agent, model, tool and HTTP metrics.
// A zero collector (metrics disabled) accepts every call and records nothing.
type MetricsCollector struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	agentRuns        metric.Int64Counter
	agentRunDuration metric.Float64Histogram
	llmRequests      metric.Int64Counter
	llmLatency       metric.Float64Histogram
	llmTokensInput   metric.Int64Counter
	llmTokensOutput  metric.Int64Counter
	toolExecutions   metric.Int64Counter
	toolDuration     metric.Float64Histogram
	schemaRetries    metric.Int64Counter
	httpRequests     metric.Int64Counter
	httpLatency      metric.Float64Histogram
}

// NewMetricsCollector creates a collector with its own prometheus registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("agentsvc")

	m := &MetricsCollector{registry: registry, provider: provider}

	int64Counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
		unit   string
	}{
		{&m.agentRuns, "agentsvc.agent.runs.total", "Agent runs by agent and outcome", "{run}"},
		{&m.llmRequests, "agentsvc.llm.requests.total", "Model requests by model and status", "{request}"},
		{&m.llmTokensInput, "agentsvc.llm.tokens.input", "Prompt tokens sent to the model", "{token}"},
		{&m.llmTokensOutput, "agentsvc.llm.tokens.output", "Completion tokens returned by the model", "{token}"},
		{&m.toolExecutions, "agentsvc.tool.executions.total", "Tool invocations by tool and outcome", "{execution}"},
		{&m.schemaRetries, "agentsvc.schema.retries.total", "Corrective re-prompts after schema violations", "{retry}"},
		{&m.httpRequests, "agentsvc.http.requests.total", "HTTP requests by route and status", "{request}"},
	}
	for _, c := range int64Counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}

	histograms := []struct {
		target *metric.Float64Histogram
		name   string
		desc   string
	}{
		{&m.agentRunDuration, "agentsvc.agent.run.duration", "Agent run duration in seconds"},
		{&m.llmLatency, "agentsvc.llm.latency", "Model request latency in seconds"},
		{&m.toolDuration, "agentsvc.tool.duration", "Tool execution duration in seconds"},
		{&m.httpLatency, "agentsvc.http.latency", "HTTP request latency in seconds"},
	}
	for _, h := range histograms {
		histogram, err := meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
		*h.target = histogram
	}

	return m, nil
}

// Enabled reports whether the collector records anything.
func (m *MetricsCollector) Enabled() bool {
	return m != nil && m.provider != nil
}

// Handler serves the prometheus exposition for this collector.
func (m *MetricsCollector) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordAgentRun records a finished agent run.
func (m *MetricsCollector) RecordAgentRun(ctx context.Context, agent, outcome string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("outcome", outcome),
	)
	m.agentRuns.Add(ctx, 1, attrs)
	m.agentRunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLLMRequest records a model call.
func (m *MetricsCollector) RecordLLMRequest(ctx context.Context, model, status string, latency time.Duration, inputTokens, outputTokens int) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmTokensInput.Add(ctx, int64(inputTokens), metric.WithAttributes(attribute.String("model", model)))
	}
	if outputTokens > 0 {
		m.llmTokensOutput.Add(ctx, int64(outputTokens), metric.WithAttributes(attribute.String("model", model)))
	}
}

// RecordToolExecution records a tool invocation.
func (m *MetricsCollector) RecordToolExecution(ctx context.Context, toolName, status string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.String("status", status),
	)
	m.toolExecutions.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSchemaRetry records a corrective re-prompt.
func (m *MetricsCollector) RecordSchemaRetry(ctx context.Context, agent string) {
	if !m.Enabled() {
		return
	}
	m.schemaRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agent)))
}

// RecordHTTPRequest records a served HTTP request.
func (m *MetricsCollector) RecordHTTPRequest(ctx context.Context, method, route string, status int, latency time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpLatency.Record(ctx, latency.Seconds(), attrs)
}
