package platform

import (
	"errors"
	"fmt"
)

// Sentinel errors, compared with errors.Is. These cover the seven error
// kinds a connector or the event pipeline can fail with, plus the state
// errors the registry and queue raise on invalid transitions.
var (
	// Connector configuration and lifecycle
	ErrConfigInvalid      = errors.New("connector configuration invalid")
	ErrAdapterUnavailable = errors.New("source adapter unavailable")
	ErrConnectorNotFound  = errors.New("connector not found")
	ErrAlreadyRegistered  = errors.New("connector already registered")
	ErrAlreadyStarted     = errors.New("connector already started")
	ErrNotInitialized     = errors.New("component not initialized")
	ErrQuarantined        = errors.New("connector is quarantined")

	// Ingestion and upstream
	ErrRateLimited = errors.New("rate limited by source")
	ErrValidation  = errors.New("event validation failed")
	ErrParse       = errors.New("event parse failed")
	ErrEnrich      = errors.New("event enrichment failed")
	ErrStore       = errors.New("event store failed")

	// Queue
	ErrQueueFull          = errors.New("job queue full")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Network/transport
	ErrTimeout          = errors.New("operation timeout")
	ErrConnectionFailed = errors.New("connection failed")

	// Resilience
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

// FrameworkError carries structured context around a sentinel error: which
// operation failed, what kind of failure it was, and which entity (a
// connector ID, a job ID) was involved.
type FrameworkError struct {
	Op      string // operation that failed, e.g. "connector.Start"
	Kind    string // error kind, e.g. "config", "adapter", "queue"
	ID      string // entity ID involved, if any
	Message string
	Err     error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

func NewFrameworkError(op, kind string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err represents a transient condition a queue
// job or scheduler tick should retry rather than give up on.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAdapterUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrStore)
}

// IsTerminal reports whether err can never succeed on retry — the event or
// configuration itself is broken, not the upstream.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrConfigInvalid) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrParse)
}

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConnectorNotFound)
}

// IsConfigurationError reports whether err is configuration-related.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

// IsStateError reports whether err is an invalid state transition.
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrQuarantined)
}
