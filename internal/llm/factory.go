package llm

import (
	"fmt"
	"strings"

	"agentsvc/internal/agent/ports"
	svcerrors "agentsvc/internal/errors"
)

// NewClient builds the transport for cfg.Provider and wraps remote providers
// with retry and circuit breaking.
func NewClient(cfg Config, retry svcerrors.RetryConfig, breaker svcerrors.CircuitBreakerConfig) (ports.LLMClient, error) {
	var (
		client ports.LLMClient
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderAzure, "":
		client, err = NewAzureOpenAIClient(cfg)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(cfg)
	case ProviderAnthropic:
		client, err = NewAnthropicClient(cfg)
	case ProviderMock:
		return NewMockClient(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return WrapWithRetry(client, retry, breaker), nil
}
