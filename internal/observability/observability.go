package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Observability bundles the logger, metrics and tracer built from one Config.
type Observability struct {
	Logger  *Logger
	Metrics *MetricsCollector
	Tracer  *TracerProvider
}

// New builds all observability components. output defaults to stdout.
func New(config Config, output io.Writer) (*Observability, error) {
	logger := NewLogger(LogConfig{
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
		Output: output,
	})

	metrics, err := NewMetricsCollector(config.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	tracer, err := NewTracerProvider(config.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	return &Observability{Logger: logger, Metrics: metrics, Tracer: tracer}, nil
}

// Shutdown flushes metrics and traces.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.Metrics.Shutdown(ctx), o.Tracer.Shutdown(ctx))
}
