package resilience

import (
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// NewCircuitBreakerFromConfig translates the process-level
// core.CircuitBreakerConfig into a named, logger- and metrics-wired
// CircuitBreaker. Bootstrap calls this once per upstream an adapter talks
// to (one breaker per connector, keyed by connector ID).
func NewCircuitBreakerFromConfig(cfg core.CircuitBreakerConfig, name string, logger core.Logger, metrics MetricsCollector) (*CircuitBreaker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	c := DefaultConfig()
	c.Name = name
	c.FailureThreshold = cfg.Threshold
	c.RecoveryTimeout = cfg.Timeout
	c.SleepWindow = cfg.Timeout
	c.HalfOpenRequests = cfg.HalfOpenRequests
	if logger != nil {
		c.Logger = logger
	}
	if metrics != nil {
		c.Metrics = metrics
	}
	return NewCircuitBreaker(c)
}

// NewRetryConfigFromConfig translates core.RetryConfig into the exponential
// backoff parameters Retry and RetryWithCircuitBreaker consume.
func NewRetryConfigFromConfig(cfg core.RetryConfig) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialInterval,
		MaxDelay:      cfg.MaxInterval,
		BackoffFactor: cfg.Multiplier,
		JitterEnabled: true,
	}
}
