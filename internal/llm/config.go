package llm

import (
	"net/http"
	"time"
)

// Providers understood by NewClient.
const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config describes one model endpoint.
type Config struct {
	Provider   string
	Endpoint   string
	APIKey     string
	APIVersion string
	// Model is the deployment name for Azure and the model id elsewhere.
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
