package config

import (
	"time"

	"agentsvc/internal/observability"
)

// ValueSource records where a configuration value came from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceFile    ValueSource = "file"
	SourceEnv     ValueSource = "env"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Model          ModelConfig          `mapstructure:"model" yaml:"model"`
	Agent          AgentConfig          `mapstructure:"agent" yaml:"agent"`
	Retry          RetryConfig          `mapstructure:"retry" yaml:"retry"`
	CircuitBreaker BreakerConfig        `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Observability  observability.Config `mapstructure:"observability" yaml:"observability"`
}

// ModelConfig selects and authenticates the model transport.
type ModelConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider" validate:"oneof=azure openai anthropic mock"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Provider azure"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	APIVersion  string        `mapstructure:"api_version" yaml:"api_version"`
	Deployment  string        `mapstructure:"deployment" yaml:"deployment" validate:"required"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// AgentConfig bounds every agent run.
type AgentConfig struct {
	MaxToolRounds        int           `mapstructure:"max_tool_rounds" yaml:"max_tool_rounds" validate:"gt=0"`
	MaxValidationRetries int           `mapstructure:"max_validation_retries" yaml:"max_validation_retries" validate:"gte=0"`
	CallTimeout          time.Duration `mapstructure:"call_timeout" yaml:"call_timeout" validate:"gt=0"`
	RunTimeout           time.Duration `mapstructure:"run_timeout" yaml:"run_timeout" validate:"gtfield=CallTimeout"`
}

// RetryConfig is the transient-failure policy of the model transport.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	BaseDelay    time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"gt=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"gtefield=BaseDelay"`
	JitterFactor float64       `mapstructure:"jitter_factor" yaml:"jitter_factor" validate:"gte=0,lte=1"`
}

// BreakerConfig configures the circuit breaker around the model transport.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold" validate:"gt=0"`
	SuccessThreshold int           `mapstructure:"success_threshold" yaml:"success_threshold" validate:"gt=0"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout" yaml:"open_timeout" validate:"gt=0"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
}

// Metadata describes how a Config was assembled.
type Metadata struct {
	ConfigFile string
	Warnings   []string
	sources    map[string]ValueSource
}

// Source reports where the value of key (e.g. "model.api_key") came from.
func (m Metadata) Source(key string) ValueSource {
	if src, ok := m.sources[key]; ok {
		return src
	}
	return SourceDefault
}

// Redacted returns a copy safe to print or log.
func (c Config) Redacted() Config {
	out := c
	out.Model.APIKey = observability.SanitizeAPIKey(c.Model.APIKey)
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return out
}
