package observability

// Config represents the complete observability configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// DefaultConfig returns the default observability configuration
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			ZipkinEndpoint: "http://localhost:9411/api/v2/spans",
			SampleRate:     1.0,
			ServiceName:    "agentsvc",
			ServiceVersion: "1.0.0",
		},
	}
}
