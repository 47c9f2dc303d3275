package config

import (
	"time"

	"agentsvc/internal/observability"
)

const (
	DefaultProvider   = "azure"
	DefaultDeployment = "gpt-4o"
	DefaultAPIVersion = "2024-12-01-preview"
	DefaultPort       = 8000
)

// DefaultAllowedOrigins are the front-end origins allowed by CORS.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// Defaults returns every configuration key with its default value.
func Defaults() map[string]any {
	obs := observability.DefaultConfig()
	return map[string]any{
		"model.provider":    DefaultProvider,
		"model.endpoint":    "",
		"model.api_key":     "",
		"model.api_version": DefaultAPIVersion,
		"model.deployment":  DefaultDeployment,
		"model.temperature": 0.2,
		"model.max_tokens":  1024,
		"model.timeout":     120 * time.Second,

		"agent.max_tool_rounds":        5,
		"agent.max_validation_retries": 2,
		"agent.call_timeout":           30 * time.Second,
		"agent.run_timeout":            90 * time.Second,

		"retry.max_attempts":  3,
		"retry.base_delay":    time.Second,
		"retry.max_delay":     10 * time.Second,
		"retry.jitter_factor": 0.25,

		"circuit_breaker.failure_threshold": 5,
		"circuit_breaker.success_threshold": 2,
		"circuit_breaker.open_timeout":      30 * time.Second,

		"server.host":             "0.0.0.0",
		"server.port":             DefaultPort,
		"server.read_timeout":     30 * time.Second,
		"server.write_timeout":    120 * time.Second,
		"server.shutdown_timeout": 10 * time.Second,
		"server.allowed_origins":  append([]string(nil), DefaultAllowedOrigins...),
		"server.debug":            false,

		"observability.logging.level":           obs.Logging.Level,
		"observability.logging.format":          obs.Logging.Format,
		"observability.metrics.enabled":         obs.Metrics.Enabled,
		"observability.tracing.enabled":         obs.Tracing.Enabled,
		"observability.tracing.exporter":        obs.Tracing.Exporter,
		"observability.tracing.otlp_endpoint":   obs.Tracing.OTLPEndpoint,
		"observability.tracing.zipkin_endpoint": obs.Tracing.ZipkinEndpoint,
		"observability.tracing.sample_rate":     obs.Tracing.SampleRate,
		"observability.tracing.service_name":    obs.Tracing.ServiceName,
		"observability.tracing.service_version": obs.Tracing.ServiceVersion,
	}
}
