package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func load(t *testing.T, env map[string]string, opts ...Option) (Config, Metadata, error) {
	t.Helper()
	base := []Option{WithSearchDirs(t.TempDir()), WithEnv(envMap(env))}
	return Load(append(base, opts...)...)
}

func TestLoadDefaults(t *testing.T) {
	cfg, meta, err := load(t, map[string]string{"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com/"})
	require.NoError(t, err)

	assert.Equal(t, "azure", cfg.Model.Provider)
	assert.Equal(t, "https://example.openai.azure.com", cfg.Model.Endpoint)
	assert.Equal(t, "gpt-4o", cfg.Model.Deployment)
	assert.Equal(t, "2024-12-01-preview", cfg.Model.APIVersion)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.Model.MaxTokens)

	assert.Equal(t, 5, cfg.Agent.MaxToolRounds)
	assert.Equal(t, 2, cfg.Agent.MaxValidationRetries)
	assert.Equal(t, 30*time.Second, cfg.Agent.CallTimeout)
	assert.Equal(t, 90*time.Second, cfg.Agent.RunTimeout)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.False(t, cfg.Observability.Tracing.Enabled)

	assert.Empty(t, meta.ConfigFile)
	assert.Equal(t, SourceEnv, meta.Source("model.endpoint"))
	assert.Equal(t, SourceDefault, meta.Source("model.deployment"))
}

func TestMissingAPIKeyWarnsInsteadOfFailing(t *testing.T) {
	cfg, meta, err := load(t, map[string]string{"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com"})
	require.NoError(t, err)
	assert.Empty(t, cfg.Model.APIKey)
	require.Len(t, meta.Warnings, 1)
	assert.Contains(t, meta.Warnings[0], "no API key configured")

	_, meta, err = load(t, map[string]string{"AGENTSVC_MODEL_PROVIDER": "mock"})
	require.NoError(t, err)
	assert.Empty(t, meta.Warnings)
}

func TestLegacyEnvironmentNames(t *testing.T) {
	cfg, meta, err := load(t, map[string]string{
		"AZURE_OPENAI_ENDPOINT":        "https://legacy.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT_NAME": "gpt-4o-mini",
		"AZURE_OPENAI_API_KEY":         "sk-legacy-0123456789",
		"AZURE_OPENAI_API_VERSION":     "2024-06-01",
		"PYDANTIC_AGENT_PORT":          "9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Deployment)
	assert.Equal(t, "sk-legacy-0123456789", cfg.Model.APIKey)
	assert.Equal(t, "2024-06-01", cfg.Model.APIVersion)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Empty(t, meta.Warnings)
}

func TestPrefixedEnvironmentWinsOverLegacyName(t *testing.T) {
	cfg, _, err := load(t, map[string]string{
		"AZURE_OPENAI_ENDPOINT":           "https://example.openai.azure.com",
		"PYDANTIC_AGENT_PORT":             "9000",
		"AGENTSVC_SERVER_PORT":            "9100",
		"AGENTSVC_AGENT_RUN_TIMEOUT":      "2m",
		"AGENTSVC_SERVER_DEBUG":           "true",
		"AGENTSVC_SERVER_ALLOWED_ORIGINS": "https://a.example, https://b.example",
	})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Agent.RunTimeout)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestConfigFileIsOverriddenByEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentsvc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: openai
  deployment: gpt-4o-mini
  api_key: from-file-key-123456
agent:
  max_tool_rounds: 8
server:
  port: 8100
`), 0o600))

	cfg, meta, err := Load(
		WithSearchDirs(dir),
		WithEnv(envMap(map[string]string{"AGENTSVC_SERVER_PORT": "8200"})),
	)
	require.NoError(t, err)
	assert.Equal(t, path, meta.ConfigFile)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 8, cfg.Agent.MaxToolRounds)
	assert.Equal(t, 8200, cfg.Server.Port)
	assert.Equal(t, SourceFile, meta.Source("agent.max_tool_rounds"))
	assert.Equal(t, SourceEnv, meta.Source("server.port"))
}

func TestExplicitConfigPathMustExist(t *testing.T) {
	_, _, err := Load(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")), WithEnv(envMap(nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidationReportsEveryProblem(t *testing.T) {
	_, _, err := load(t, map[string]string{
		"AGENTSVC_MODEL_PROVIDER":     "bedrock",
		"AGENTSVC_AGENT_CALL_TIMEOUT": "2m",
		"AGENTSVC_SERVER_PORT":        "70000",
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `model.provider must be one of [azure openai anthropic mock], got "bedrock"`)
	assert.Contains(t, msg, "agent.run_timeout must be greater than call_timeout")
	assert.Contains(t, msg, "server.port must be at most 65535")
}

func TestAzureRequiresEndpoint(t *testing.T) {
	_, _, err := load(t, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.endpoint is required")

	_, _, err = load(t, map[string]string{"AZURE_OPENAI_API_KEY": "sk-abcdefghijklmnop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.endpoint is required")
}

func TestEndpointOnlyRequiredForAzure(t *testing.T) {
	cfg, meta, err := load(t, map[string]string{"AGENTSVC_MODEL_PROVIDER": "mock"})
	require.NoError(t, err)
	assert.Empty(t, cfg.Model.Endpoint)
	assert.Empty(t, meta.Warnings)

	cfg, meta, err = load(t, map[string]string{"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.openai.azure.com", cfg.Model.Endpoint)
	require.Len(t, meta.Warnings, 1)
	assert.Contains(t, meta.Warnings[0], "no API key configured")
}

func TestRedactedMasksAPIKey(t *testing.T) {
	cfg := Config{Model: ModelConfig{APIKey: "sk-1234567890abcdef"}}
	redacted := cfg.Redacted()
	assert.Equal(t, "sk-1...cdef", redacted.Model.APIKey)
	assert.Equal(t, "sk-1234567890abcdef", cfg.Model.APIKey)
	assert.Equal(t, "(unset)", Config{}.Redacted().Model.APIKey)
}
