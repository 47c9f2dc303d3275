package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentsvc/internal/agent/ports"
	svcerrors "agentsvc/internal/errors"
	"agentsvc/internal/logging"
)

// retryClient wraps an LLM client with retry logic and circuit breaker
type retryClient struct {
	underlying     ports.LLMClient
	retryConfig    svcerrors.RetryConfig
	circuitBreaker *svcerrors.CircuitBreaker
	logger         logging.Logger
}

// NewRetryClient wraps an LLM client with retry and circuit breaker logic
func NewRetryClient(client ports.LLMClient, retryConfig svcerrors.RetryConfig, circuitBreaker *svcerrors.CircuitBreaker) ports.LLMClient {
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: circuitBreaker,
		logger:         logging.NewComponentLogger("llm-retry"),
	}
}

// WrapWithRetry creates the circuit breaker for client and wraps it.
func WrapWithRetry(client ports.LLMClient, retryConfig svcerrors.RetryConfig, circuitBreakerConfig svcerrors.CircuitBreakerConfig) ports.LLMClient {
	circuitBreaker := svcerrors.NewCircuitBreaker(
		fmt.Sprintf("llm-%s", client.Model()),
		circuitBreakerConfig,
	)
	return NewRetryClient(client, retryConfig, circuitBreaker)
}

// Complete executes LLM completion with retry logic
func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	startTime := time.Now()

	resp, err := svcerrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		return svcerrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*ports.CompletionResponse, error) {
			response, err := c.underlying.Complete(ctx, req)
			if err != nil {
				return nil, classifyLLMError(err)
			}
			return response, nil
		})
	}, c.logger)

	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
		if svcerrors.IsDegraded(err) || svcerrors.IsPermanent(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%s (gave up after %v): %w", svcerrors.Describe(err), duration.Round(time.Millisecond), err)
	}

	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}
	return resp, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}

// classifyLLMError marks untyped transport failures so the retry loop can
// tell transient from permanent ones.
func classifyLLMError(err error) error {
	if err == nil {
		return nil
	}
	var transientErr *svcerrors.TransientError
	var permanentErr *svcerrors.PermanentError
	if errors.As(err, &transientErr) || errors.As(err, &permanentErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	lowerErr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErr, "429"), strings.Contains(lowerErr, "rate limit"):
		return svcerrors.NewTransientError(err, "API rate limit reached. Retrying with exponential backoff.")
	case strings.Contains(lowerErr, "500"), strings.Contains(lowerErr, "internal server error"),
		strings.Contains(lowerErr, "502"), strings.Contains(lowerErr, "bad gateway"),
		strings.Contains(lowerErr, "503"), strings.Contains(lowerErr, "service unavailable"),
		strings.Contains(lowerErr, "504"), strings.Contains(lowerErr, "gateway timeout"):
		return svcerrors.NewTransientError(err, "Model server error. Retrying request.")
	case strings.Contains(lowerErr, "connection refused"), strings.Contains(lowerErr, "connection reset"),
		strings.Contains(lowerErr, "broken pipe"), strings.Contains(lowerErr, "no such host"):
		return svcerrors.NewTransientError(err, "Model endpoint is not reachable. Retrying request.")
	case strings.Contains(lowerErr, "timeout"), strings.Contains(lowerErr, "deadline exceeded"):
		return svcerrors.NewTransientError(err, "Model request timed out. Retrying with backoff.")
	case strings.Contains(lowerErr, "401"), strings.Contains(lowerErr, "unauthorized"):
		return svcerrors.NewPermanentError(err, "Authentication failed. Please check your API key configuration.")
	case strings.Contains(lowerErr, "403"), strings.Contains(lowerErr, "forbidden"):
		return svcerrors.NewPermanentError(err, "Permission denied for this model or deployment.")
	case strings.Contains(lowerErr, "404"), strings.Contains(lowerErr, "not found"):
		return svcerrors.NewPermanentError(err, "Model or deployment not found. Please verify the deployment name.")
	}
	return err
}
