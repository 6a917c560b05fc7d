package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// CircuitState is one of the three states a CircuitBreaker can be in.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
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

// MetricsCollector receives circuit breaker state transitions and outcomes.
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, errorType string)
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

type noopMetrics struct{}

func (n *noopMetrics) RecordSuccess(name string)                      {}
func (n *noopMetrics) RecordFailure(name string, errorType string)    {}
func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// ErrorClassifier decides whether an error counts toward the breaker's
// failure threshold. Callers that give up on their own (context
// cancellation) or send bad input shouldn't trip the breaker.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts infrastructure failures (network, timeout,
// connection) and excludes configuration errors, not-found results, state
// errors, and client-side cancellation.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if core.IsConfigurationError(err) {
		return false
	}
	if core.IsNotFound(err) {
		return false
	}
	if core.IsStateError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// CircuitBreakerConfig configures a CircuitBreaker. Two independent
// conditions can open the circuit: a raw failure count (failures since the
// breaker last closed or was Reset; successes do not reset it)
// (FailureThreshold, the shape NewCircuitBreakerFromConfig drives from
// platform.CircuitBreakerConfig) and a sliding-window error rate
// (ErrorThreshold/VolumeThreshold), whichever trips first.
type CircuitBreakerConfig struct {
	Name string

	FailureThreshold int
	RecoveryTimeout  time.Duration

	ErrorThreshold  float64
	VolumeThreshold int

	SleepWindow      time.Duration
	HalfOpenRequests int
	SuccessThreshold float64

	WindowSize  time.Duration
	BucketCount int

	ErrorClassifier ErrorClassifier
	Logger          core.Logger
	Metrics         MetricsCollector
}

// DefaultConfig returns sane defaults for a breaker guarding one upstream.
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		ErrorThreshold:   0.5,
		VolumeThreshold:  10,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 5,
		SuccessThreshold: 0.6,
		WindowSize:       60 * time.Second,
		BucketCount:      10,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// executionToken tracks one in-flight call, chiefly so half-open requests
// that never complete (the caller's goroutine leaked or panicked past
// recover) can be reclaimed by CleanupOrphanedRequests.
type executionToken struct {
	id         uint64
	startTime  time.Time
	isHalfOpen bool
}

// CircuitBreaker wraps an upstream call with a sliding-window error-rate
// trip condition plus a half-open probing phase, per spec.md §7's
// AdapterUnavailable/RateLimited handling: the API adapter wraps
// SourceClient.FetchBatch in one of these so a failing upstream stops
// taking traffic instead of retrying into it forever.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	state          atomic.Value // CircuitState
	stateChangedAt atomic.Value // time.Time
	generation     uint64

	window *SlidingWindow

	halfOpenCount     atomic.Int32
	halfOpenTotal     atomic.Int32
	halfOpenSuccesses atomic.Int32
	halfOpenFailures  atomic.Int32
	halfOpenTokens    sync.Map // map[uint64]executionToken
	tokenCounter      atomic.Uint64

	forceOpen   atomic.Bool
	forceClosed atomic.Bool

	failureCount atomic.Int32

	errorTypeCache sync.Map // map[error]string

	listeners []func(name string, from, to CircuitState)

	mu sync.Mutex

	executionsInFlight atomic.Int32
	totalExecutions    atomic.Uint64
	rejectedExecutions atomic.Uint64
}

// NewCircuitBreaker validates config and constructs a breaker in the
// closed state.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	if config.WindowSize == 0 {
		config.WindowSize = 60 * time.Second
	}
	if config.BucketCount == 0 {
		config.BucketCount = 10
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 0.6
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 5
	}

	cb := &CircuitBreaker{
		config:    config,
		window:    NewSlidingWindowWithLogger(config.WindowSize, config.BucketCount, true, config.Logger, config.Name),
		listeners: make([]func(string, CircuitState, CircuitState), 0),
	}
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	return cb, nil
}

// SetLogger replaces the breaker's logger, tagging it with the resilience
// component if the logger supports that.
func (cb *CircuitBreaker) SetLogger(logger core.Logger) {
	if logger == nil {
		cb.config.Logger = &core.NoOpLogger{}
		return
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		cb.config.Logger = cal.WithComponent("resilience/circuit-breaker")
	} else {
		cb.config.Logger = logger
	}
}

// Execute runs fn with circuit breaker protection and no timeout.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	return cb.ExecuteWithTimeout(ctx, 0, fn)
}

// ExecuteWithTimeout runs fn with circuit breaker protection, bounding it
// to timeout if non-zero. A panicking fn is recovered and reported as a
// failure rather than crashing the worker goroutine that called Execute.
func (cb *CircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	token, allowed := cb.startExecution()
	if !allowed {
		cb.rejectedExecutions.Add(1)
		cb.config.Metrics.RecordRejection(cb.config.Name)
		return fmt.Errorf("circuit breaker '%s' is open: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	cb.executionsInFlight.Add(1)
	defer cb.executionsInFlight.Add(-1)
	cb.totalExecutions.Add(1)

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				var panicErr error
				switch v := r.(type) {
				case error:
					panicErr = fmt.Errorf("panic in circuit breaker: %w\n%s", v, stack)
				default:
					panicErr = fmt.Errorf("panic in circuit breaker: %v\n%s", v, stack)
				}
				cb.config.Logger.Error("circuit breaker caught panic", map[string]interface{}{
					"name": cb.config.Name, "panic": fmt.Sprintf("%v", r),
				})
				done <- panicErr
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		cb.completeExecution(token, err)
		return err
	case <-ctx.Done():
		// fn keeps running; reclaim the token once it eventually finishes
		// so it doesn't count as a leaked half-open slot forever.
		go func() {
			<-done
			cb.completeExecution(token, ctx.Err())
		}()
		return ctx.Err()
	}
}

func (cb *CircuitBreaker) startExecution() (executionToken, bool) {
	if cb.forceClosed.Load() {
		return executionToken{}, true
	}
	if cb.forceOpen.Load() {
		return executionToken{}, false
	}

	switch cb.state.Load().(CircuitState) {
	case StateClosed:
		return executionToken{id: cb.tokenCounter.Add(1), startTime: time.Now()}, true

	case StateOpen:
		stateChangedAt := cb.stateChangedAt.Load().(time.Time)
		if time.Since(stateChangedAt) <= cb.config.SleepWindow {
			return executionToken{}, false
		}
		cb.mu.Lock()
		if cb.state.Load().(CircuitState) == StateOpen {
			cb.transitionToUnlocked(StateHalfOpen)
		}
		cb.mu.Unlock()
		return cb.startExecution()

	case StateHalfOpen:
		for {
			current := cb.halfOpenTotal.Load()
			if cb.config.HalfOpenRequests > 0 && int(current) >= cb.config.HalfOpenRequests {
				return executionToken{}, false
			}
			if cb.halfOpenTotal.CompareAndSwap(current, current+1) {
				break
			}
		}
		cb.halfOpenCount.Add(1)
		token := executionToken{id: cb.tokenCounter.Add(1), startTime: time.Now(), isHalfOpen: true}
		cb.halfOpenTokens.Store(token.id, token)
		return token, true

	default:
		return executionToken{}, false
	}
}

func (cb *CircuitBreaker) completeExecution(token executionToken, err error) {
	if cb.forceClosed.Load() || cb.forceOpen.Load() {
		return
	}

	if token.isHalfOpen {
		cb.halfOpenTokens.Delete(token.id)
		cb.halfOpenCount.Add(-1)
	}

	if err == nil {
		cb.window.RecordSuccess()
		cb.config.Metrics.RecordSuccess(cb.config.Name)
		if token.isHalfOpen {
			cb.halfOpenSuccesses.Add(1)
		}
	} else if cb.config.ErrorClassifier(err) {
		cb.window.RecordFailure()
		cb.config.Metrics.RecordFailure(cb.config.Name, cb.getErrorType(err))
		cb.failureCount.Add(1)
		if token.isHalfOpen {
			cb.halfOpenFailures.Add(1)
		}
	}

	cb.evaluateState()
}

func (cb *CircuitBreaker) getErrorType(err error) string {
	if cached, ok := cb.errorTypeCache.Load(err); ok {
		return cached.(string)
	}
	switch err.(type) {
	case *core.FrameworkError:
		return "*core.FrameworkError"
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return "DeadlineExceeded"
		}
		if errors.Is(err, context.Canceled) {
			return "Canceled"
		}
		errorType := fmt.Sprintf("%T", err)
		cb.errorTypeCache.Store(err, errorType)
		return errorType
	}
}

// evaluateState checks the current state against both trip conditions and
// transitions if warranted. Called after every completed execution.
func (cb *CircuitBreaker) evaluateState() {
	switch cb.state.Load().(CircuitState) {
	case StateClosed:
		if cb.config.FailureThreshold > 0 && int(cb.failureCount.Load()) >= cb.config.FailureThreshold {
			cb.mu.Lock()
			cb.transitionToUnlocked(StateOpen)
			cb.mu.Unlock()
			return
		}
		total := cb.window.GetTotal()
		errorRate := cb.window.GetErrorRate()
		if cb.config.VolumeThreshold > 0 && total >= uint64(cb.config.VolumeThreshold) && errorRate >= cb.config.ErrorThreshold {
			cb.mu.Lock()
			cb.transitionToUnlocked(StateOpen)
			cb.mu.Unlock()
		}

	case StateHalfOpen:
		successes := cb.halfOpenSuccesses.Load()
		failures := cb.halfOpenFailures.Load()
		total := successes + failures
		if cb.config.HalfOpenRequests > 0 && int(total) >= cb.config.HalfOpenRequests {
			successRate := float64(successes) / float64(total)
			cb.mu.Lock()
			if successRate >= cb.config.SuccessThreshold {
				cb.transitionToUnlocked(StateClosed)
				cb.failureCount.Store(0)
			} else {
				cb.transitionToUnlocked(StateOpen)
				cb.config.SleepWindow = time.Duration(float64(cb.config.SleepWindow) * 1.5)
				if cb.config.SleepWindow > 5*time.Minute {
					cb.config.SleepWindow = 5 * time.Minute
				}
			}
			cb.mu.Unlock()
		}
	}
}

// transitionToUnlocked changes state; caller must hold mu.
func (cb *CircuitBreaker) transitionToUnlocked(newState CircuitState) {
	oldState := cb.state.Load().(CircuitState)
	if oldState == newState {
		return
	}

	cb.state.Store(newState)
	cb.stateChangedAt.Store(time.Now())
	cb.generation++

	if newState == StateHalfOpen {
		cb.halfOpenCount.Store(0)
		cb.halfOpenTotal.Store(0)
		cb.halfOpenSuccesses.Store(0)
		cb.halfOpenFailures.Store(0)
		cb.halfOpenTokens.Range(func(key, value interface{}) bool {
			cb.halfOpenTokens.Delete(key)
			return true
		})
	}

	cb.config.Logger.Info("circuit breaker state changed", map[string]interface{}{
		"name": cb.config.Name, "from": oldState.String(), "to": newState.String(),
	})
	cb.config.Metrics.RecordStateChange(cb.config.Name, oldState.String(), newState.String())

	for _, listener := range cb.listeners {
		go listener(cb.config.Name, oldState, newState)
	}
}

// AddStateChangeListener registers a callback invoked (in its own
// goroutine) on every state transition.
func (cb *CircuitBreaker) AddStateChangeListener(listener func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	cb.listeners = append(cb.listeners, listener)
	cb.mu.Unlock()
}

// GetState returns the breaker's current state as a string.
func (cb *CircuitBreaker) GetState() string {
	return cb.state.Load().(CircuitState).String()
}

// GetMetrics returns a point-in-time snapshot suitable for a health or
// metrics endpoint.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	success, failure := cb.window.GetCounts()
	metrics := map[string]interface{}{
		"name":                 cb.config.Name,
		"state":                cb.GetState(),
		"generation":           cb.generation,
		"success":              success,
		"failure":              failure,
		"total":                success + failure,
		"error_rate":           cb.window.GetErrorRate(),
		"force_open":           cb.forceOpen.Load(),
		"force_closed":         cb.forceClosed.Load(),
		"executions_in_flight": cb.executionsInFlight.Load(),
		"total_executions":     cb.totalExecutions.Load(),
		"rejected_executions":  cb.rejectedExecutions.Load(),
	}
	if cb.state.Load().(CircuitState) == StateHalfOpen {
		metrics["half_open_count"] = cb.halfOpenCount.Load()
		metrics["half_open_successes"] = cb.halfOpenSuccesses.Load()
		metrics["half_open_failures"] = cb.halfOpenFailures.Load()
	}
	return metrics
}

// Reset clears all counters and returns the breaker to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	cb.failureCount.Store(0)
	cb.halfOpenCount.Store(0)
	cb.halfOpenSuccesses.Store(0)
	cb.halfOpenFailures.Store(0)
	cb.window = NewSlidingWindowWithLogger(cb.config.WindowSize, cb.config.BucketCount, true, cb.config.Logger, cb.config.Name)
	cb.halfOpenTokens.Range(func(key, value interface{}) bool {
		cb.halfOpenTokens.Delete(key)
		return true
	})
}

// ForceOpen manually opens the circuit, overriding normal evaluation.
func (cb *CircuitBreaker) ForceOpen() {
	cb.forceOpen.Store(true)
	cb.forceClosed.Store(false)
	cb.mu.Lock()
	if cb.state.Load().(CircuitState) != StateOpen {
		cb.transitionToUnlocked(StateOpen)
	}
	cb.mu.Unlock()
}

// ForceClosed manually closes the circuit, overriding normal evaluation.
func (cb *CircuitBreaker) ForceClosed() {
	cb.forceClosed.Store(true)
	cb.forceOpen.Store(false)
	cb.mu.Lock()
	if cb.state.Load().(CircuitState) != StateClosed {
		cb.transitionToUnlocked(StateClosed)
	}
	cb.mu.Unlock()
}

// ClearForce removes any ForceOpen/ForceClosed override.
func (cb *CircuitBreaker) ClearForce() {
	cb.forceOpen.Store(false)
	cb.forceClosed.Store(false)
}

// CleanupOrphanedRequests reclaims half-open slots held by executions
// that started more than maxAge ago and never completed (the recover()
// path missed them, or the caller's process is wedged). Returns the
// number reclaimed.
func (cb *CircuitBreaker) CleanupOrphanedRequests(maxAge time.Duration) int {
	cleaned := 0
	now := time.Now()
	cb.halfOpenTokens.Range(func(key, value interface{}) bool {
		token, ok := value.(executionToken)
		if !ok {
			return true
		}
		if now.Sub(token.startTime) > maxAge {
			cb.halfOpenTokens.Delete(key)
			cb.completeExecution(token, errors.New("request orphaned"))
			cleaned++
		}
		return true
	})
	if cleaned > 0 {
		cb.config.Logger.Warn("reclaimed orphaned half-open requests", map[string]interface{}{
			"name": cb.config.Name, "count": cleaned,
		})
	}
	return cleaned
}

// Validate checks the config for internally-consistent values.
func (c *CircuitBreakerConfig) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if c.Name == "" {
		return errors.New("circuit breaker name is required")
	}
	if c.ErrorThreshold < 0 || c.ErrorThreshold > 1 {
		return fmt.Errorf("error threshold must be between 0 and 1, got %f", c.ErrorThreshold)
	}
	if c.VolumeThreshold < 0 {
		return fmt.Errorf("volume threshold must be non-negative, got %d", c.VolumeThreshold)
	}
	if c.SuccessThreshold < 0 || c.SuccessThreshold > 1 {
		return fmt.Errorf("success threshold must be between 0 and 1, got %f", c.SuccessThreshold)
	}
	if c.HalfOpenRequests < 1 {
		return fmt.Errorf("half-open requests must be at least 1, got %d", c.HalfOpenRequests)
	}
	if c.SleepWindow < 0 {
		return fmt.Errorf("sleep window must be non-negative, got %v", c.SleepWindow)
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("window size must be non-negative, got %v", c.WindowSize)
	}
	if c.BucketCount < 1 {
		return fmt.Errorf("bucket count must be at least 1, got %d", c.BucketCount)
	}
	return nil
}

type bucket struct {
	timestamp time.Time
	success   uint64
	failure   uint64
}

// SlidingWindow tracks success/failure counts over a rolling time window,
// divided into buckets that rotate out as they age past windowSize.
type SlidingWindow struct {
	buckets      []bucket
	windowSize   time.Duration
	bucketSize   time.Duration
	currentIdx   int
	lastRotation time.Time
	mu           sync.RWMutex
	monotonic    bool

	logger core.Logger
	name   string
}

func NewSlidingWindow(windowSize time.Duration, bucketCount int, monotonic bool) *SlidingWindow {
	return NewSlidingWindowWithLogger(windowSize, bucketCount, monotonic, nil, "")
}

// NewSlidingWindowWithLogger is like NewSlidingWindow but logs when the
// system clock jumps backward far enough to desynchronize bucket rotation.
func NewSlidingWindowWithLogger(windowSize time.Duration, bucketCount int, monotonic bool, logger core.Logger, name string) *SlidingWindow {
	if bucketCount <= 0 {
		bucketCount = 10
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	bucketSize := windowSize / time.Duration(bucketCount)
	buckets := make([]bucket, bucketCount)
	now := time.Now()
	for i := range buckets {
		buckets[i].timestamp = now
	}

	return &SlidingWindow{
		buckets:      buckets,
		windowSize:   windowSize,
		bucketSize:   bucketSize,
		lastRotation: now,
		monotonic:    monotonic,
		logger:       logger,
		name:         name,
	}
}

func (sw *SlidingWindow) rotateBuckets() {
	now := time.Now()

	var elapsed time.Duration
	if sw.monotonic {
		elapsed = now.Sub(sw.lastRotation)
	} else {
		elapsed = now.Sub(sw.buckets[sw.currentIdx].timestamp)
	}

	if elapsed < 0 {
		sw.logger.Warn("clock moved backward, resetting circuit breaker window", map[string]interface{}{
			"name": sw.name, "elapsed_ns": elapsed.Nanoseconds(),
		})
		sw.reset()
		return
	}

	if elapsed >= sw.bucketSize {
		bucketsToRotate := int(elapsed / sw.bucketSize)
		if bucketsToRotate > len(sw.buckets) {
			bucketsToRotate = len(sw.buckets)
		}
		for i := 0; i < bucketsToRotate; i++ {
			sw.currentIdx = (sw.currentIdx + 1) % len(sw.buckets)
			sw.buckets[sw.currentIdx] = bucket{timestamp: now}
		}
		sw.lastRotation = now
	}
}

func (sw *SlidingWindow) reset() {
	now := time.Now()
	for i := range sw.buckets {
		sw.buckets[i] = bucket{timestamp: now}
	}
	sw.currentIdx = 0
	sw.lastRotation = now
}

func (sw *SlidingWindow) RecordSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotateBuckets()
	atomic.AddUint64(&sw.buckets[sw.currentIdx].success, 1)
}

func (sw *SlidingWindow) RecordFailure() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotateBuckets()
	atomic.AddUint64(&sw.buckets[sw.currentIdx].failure, 1)
}

func (sw *SlidingWindow) GetCounts() (success, failure uint64) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	cutoff := time.Now().Add(-sw.windowSize)
	for i := range sw.buckets {
		b := &sw.buckets[i]
		if b.timestamp.After(cutoff) {
			success += atomic.LoadUint64(&b.success)
			failure += atomic.LoadUint64(&b.failure)
		}
	}
	return success, failure
}

func (sw *SlidingWindow) GetErrorRate() float64 {
	success, failure := sw.GetCounts()
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(failure) / float64(total)
}

func (sw *SlidingWindow) GetTotal() uint64 {
	success, failure := sw.GetCounts()
	return success + failure
}

// CanExecute reports whether the breaker would currently admit a call,
// advancing open->half-open on its own if the sleep window has elapsed.
// RetryWithCircuitBreaker (retry.go) uses this plus RecordSuccess/
// RecordFailure instead of Execute so a single retry loop can share one
// breaker across attempts.
func (cb *CircuitBreaker) CanExecute() bool {
	state := cb.state.Load().(CircuitState)
	if state == StateClosed {
		return true
	}
	if state == StateOpen {
		stateChangedAt := cb.stateChangedAt.Load().(time.Time)
		if time.Since(stateChangedAt) > cb.config.SleepWindow {
			cb.mu.Lock()
			if cb.state.Load().(CircuitState) == StateOpen {
				cb.transitionToUnlocked(StateHalfOpen)
			}
			cb.mu.Unlock()
			return true
		}
		return false
	}
	return cb.config.HalfOpenRequests > 0 && int(cb.halfOpenTotal.Load()) < cb.config.HalfOpenRequests
}

// RecordSuccess records a successful call made after a CanExecute check.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.window.RecordSuccess()
	cb.evaluateState()
}

// RecordFailure records a failed call made after a CanExecute check.
func (cb *CircuitBreaker) RecordFailure() {
	cb.window.RecordFailure()
	cb.failureCount.Add(1)
	cb.evaluateState()
}
