package errors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentsvc/internal/logging"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed - normal operation, requests allowed
	StateClosed CircuitState = iota
	// StateOpen - failing, requests blocked
	StateOpen
	// StateHalfOpen - testing if service recovered
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	FailureThreshold int                                      // Consecutive failures that open the circuit (default: 5)
	SuccessThreshold int                                      // Consecutive half-open successes that close it (default: 2)
	Timeout          time.Duration                            // Open period before probing (default: 30s)
	OnStateChange    func(from, to CircuitState, name string) // Optional callback
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker fences off a dependency after repeated transient failures.
// Permanent failures (bad request, missing credential) do not count against it.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger logging.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logging.NewComponentLogger("circuit-breaker"),
		now:    time.Now,
		state:  StateClosed,
	}
}

// ExecuteFunc runs fn under breaker protection and returns its value.
func ExecuteFunc[T any](cb *CircuitBreaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zeroValue T
	if err := cb.beforeRequest(); err != nil {
		return zeroValue, err
	}

	result, err := fn(ctx)
	cb.afterRequest(err)
	return result, err
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteFunc(cb, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		elapsed := cb.now().Sub(cb.lastFailureTime)
		if elapsed >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.successCount = 0
			cb.logger.Info("[%s] Circuit breaker half-open, probing recovery", cb.name)
			return nil
		}
		return NewDegradedError(
			fmt.Errorf("circuit breaker open for %s", cb.name),
			fmt.Sprintf("Model endpoint '%s' is temporarily unavailable after repeated failures; retry in %v.",
				cb.name, (cb.config.Timeout - elapsed).Round(time.Second)),
		)
	default:
		return fmt.Errorf("unknown circuit breaker state: %v", cb.state)
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !IsTransient(err) {
		cb.onSuccess()
		return
	}
	cb.onFailure()
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.Info("[%s] Circuit breaker closed (service recovered)", cb.name)
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
			cb.logger.Warn("[%s] Circuit breaker opened after %d failures", cb.name, cb.failureCount)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.successCount = 0
		cb.logger.Warn("[%s] Circuit breaker reopened (probe failed)", cb.name)
	}
}

func (cb *CircuitBreaker) setState(newState CircuitState) {
	oldState := cb.state
	cb.state = newState
	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(oldState, newState, cb.name)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
