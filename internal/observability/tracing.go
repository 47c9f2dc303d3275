package observability

import (
	"context"
	"fmt"

	id "agentsvc/internal/utils/id"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingConfig configures distributed tracing
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter       string  `mapstructure:"exporter" yaml:"exporter" validate:"omitempty,oneof=otlp zipkin"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ZipkinEndpoint string  `mapstructure:"zipkin_endpoint" yaml:"zipkin_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
}

// TracerProvider wraps OpenTelemetry tracer
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider creates a new tracer provider. Disabled tracing yields a noop tracer.
func NewTracerProvider(config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return NoopTracer(), nil
	}

	if config.ServiceName == "" {
		config.ServiceName = "agentsvc"
	}
	if config.SampleRate <= 0 || config.SampleRate > 1.0 {
		config.SampleRate = 1.0
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch config.Exporter {
	case "otlp", "":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		exporter, err = otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "zipkin":
		endpoint := config.ZipkinEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:9411/api/v2/spans"
		}
		exporter, err = zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", config.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer("agentsvc"),
	}, nil
}

// NoopTracer returns a tracer provider that records nothing.
func NoopTracer() *TracerProvider {
	return &TracerProvider{tracer: noop.NewTracerProvider().Tracer("agentsvc")}
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartSpan starts a span carrying the run and request identifiers found on ctx.
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp == nil {
		tp = NoopTracer()
	}
	if runID := id.RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	if requestID := id.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	return tp.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Span names
const (
	SpanAgentRun   = "agentsvc.agent.run"
	SpanModelCall  = "agentsvc.llm.complete"
	SpanToolCall   = "agentsvc.tool.invoke"
	SpanHTTPServer = "agentsvc.http.request"
)

// Attribute keys
const (
	AttrRunID     = "agentsvc.run_id"
	AttrRequestID = "agentsvc.request_id"
	AttrAgent     = "agentsvc.agent"
	AttrToolName  = "agentsvc.tool_name"
	AttrModel     = "agentsvc.llm.model"
	AttrRound     = "agentsvc.round"
	AttrOutcome   = "agentsvc.outcome"
)
