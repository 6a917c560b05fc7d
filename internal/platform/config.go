package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-level configuration for ingestiond. It supports
// three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables, INGESTCORE_* (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithRedisURL("redis://localhost:6379"),
//	)
type Config struct {
	Name      string `json:"name" env:"INGESTCORE_SERVICE_NAME"`
	Port      int    `json:"port" env:"INGESTCORE_PORT" default:"8080"`
	Address   string `json:"address" env:"INGESTCORE_ADDRESS"`
	Namespace string `json:"namespace" env:"INGESTCORE_NAMESPACE" default:"ingestcore"`

	HTTP       HTTPConfig       `json:"http"`
	Registry   RegistryConfig   `json:"registry"`
	Queue      QueueConfig      `json:"queue"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Monitor    MonitorConfig    `json:"monitor"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Resilience ResilienceConfig `json:"resilience"`
	Logging    LoggingConfig    `json:"logging"`
	Development DevelopmentConfig `json:"development"`

	logger Logger `json:"-"`
}

// HTTPConfig contains HTTP server configuration including timeouts and CORS.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"read_timeout" env:"INGESTCORE_HTTP_READ_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"INGESTCORE_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"INGESTCORE_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"INGESTCORE_HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"INGESTCORE_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	EnableHealthCheck bool          `json:"enable_health_check" env:"INGESTCORE_HTTP_HEALTH_CHECK" default:"true"`
	HealthCheckPath   string        `json:"health_check_path" env:"INGESTCORE_HTTP_HEALTH_PATH" default:"/healthz"`
	CORS              CORSConfig    `json:"cors"`
}

// RegistryConfig selects and configures the connector registry backend.
type RegistryConfig struct {
	Backend  string        `json:"backend" env:"INGESTCORE_REGISTRY_BACKEND" default:"memory"`
	RedisURL string        `json:"redis_url" env:"INGESTCORE_REDIS_URL,REDIS_URL"`
	TTL      time.Duration `json:"ttl" env:"INGESTCORE_REGISTRY_TTL" default:"30s"`
}

// QueueConfig controls the priority job queue's capacity and retry policy.
type QueueConfig struct {
	Capacity        int           `json:"capacity" env:"INGESTCORE_QUEUE_CAPACITY" default:"10000"`
	Workers         int           `json:"workers" env:"INGESTCORE_QUEUE_WORKERS" default:"4"`
	MaxAttempts     int           `json:"max_attempts" env:"INGESTCORE_QUEUE_MAX_ATTEMPTS" default:"5"`
	RetryDelayBase  time.Duration `json:"retry_delay_base" env:"INGESTCORE_QUEUE_RETRY_BASE" default:"2s"`
}

// SchedulerConfig controls the polling scheduler that drives pull adapters.
type SchedulerConfig struct {
	TickInterval time.Duration `json:"tick_interval" env:"INGESTCORE_SCHEDULER_TICK" default:"1s"`
}

// MonitorConfig controls the realtime monitor's history depth and tick rate.
type MonitorConfig struct {
	HistoryLength int           `json:"history_length" env:"INGESTCORE_MONITOR_HISTORY" default:"100"`
	TickInterval  time.Duration `json:"tick_interval" env:"INGESTCORE_MONITOR_TICK" default:"5s"`
}

// CORSConfig contains Cross-Origin Resource Sharing configuration.
// Supports wildcard domains (*.example.com) and wildcard ports (http://localhost:*).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" env:"INGESTCORE_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" env:"INGESTCORE_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" env:"INGESTCORE_CORS_METHODS" default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" env:"INGESTCORE_CORS_HEADERS" default:"Content-Type,Authorization"`
	ExposedHeaders   []string `json:"exposed_headers" env:"INGESTCORE_CORS_EXPOSED_HEADERS"`
	AllowCredentials bool     `json:"allow_credentials" env:"INGESTCORE_CORS_CREDENTIALS" default:"false"`
	MaxAge           int      `json:"max_age" env:"INGESTCORE_CORS_MAX_AGE" default:"86400"`
}

// TelemetryConfig contains observability configuration for metrics and
// distributed tracing. Supports the OpenTelemetry OTLP/gRPC protocol.
type TelemetryConfig struct {
	Enabled        bool   `json:"enabled" env:"INGESTCORE_TELEMETRY_ENABLED" default:"false"`
	Endpoint       string `json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string `json:"service_name" env:"OTEL_SERVICE_NAME"`
	MetricsEnabled bool   `json:"metrics_enabled" env:"INGESTCORE_TELEMETRY_METRICS" default:"true"`
	TracingEnabled bool   `json:"tracing_enabled" env:"INGESTCORE_TELEMETRY_TRACING" default:"true"`
	Insecure       bool   `json:"insecure" env:"INGESTCORE_TELEMETRY_INSECURE" default:"true"`
}

// ResilienceConfig contains fault-tolerance pattern settings shared by
// source adapters and the job queue.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry"`
}

// CircuitBreakerConfig defines circuit breaker settings for adapter upstream calls.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" env:"INGESTCORE_CB_ENABLED" default:"true"`
	Threshold        int           `json:"threshold" env:"INGESTCORE_CB_THRESHOLD" default:"5"`
	Timeout          time.Duration `json:"timeout" env:"INGESTCORE_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int           `json:"half_open_requests" env:"INGESTCORE_CB_HALF_OPEN" default:"3"`
}

// RetryConfig defines retry pattern settings with exponential backoff.
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" env:"INGESTCORE_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" env:"INGESTCORE_RETRY_INITIAL_INTERVAL" default:"1s"`
	MaxInterval     time.Duration `json:"max_interval" env:"INGESTCORE_RETRY_MAX_INTERVAL" default:"30s"`
	Multiplier      float64       `json:"multiplier" env:"INGESTCORE_RETRY_MULTIPLIER" default:"2.0"`
}

// LoggingConfig contains logging configuration. Supports structured (JSON)
// and human-readable (text) output.
type LoggingConfig struct {
	Level  string `json:"level" env:"INGESTCORE_LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"INGESTCORE_LOG_FORMAT" default:"json"`
	Output string `json:"output" env:"INGESTCORE_LOG_OUTPUT" default:"stdout"`
}

// DevelopmentConfig contains settings for local development.
// Never enable in production.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"INGESTCORE_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"INGESTCORE_DEBUG" default:"false"`
}

// Option is a functional option applied after defaults and environment
// variables have been loaded.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults for a
// single-process, in-memory deployment.
func DefaultConfig() *Config {
	return &Config{
		Name:      "ingestiond",
		Port:      8080,
		Namespace: DefaultNamespace,
		HTTP: HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			EnableHealthCheck: true,
			HealthCheckPath:   "/healthz",
			CORS: CORSConfig{
				Enabled:        false,
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         86400,
			},
		},
		Registry: RegistryConfig{
			Backend: "memory",
			TTL:     DefaultRegistryTTL,
		},
		Queue: QueueConfig{
			Capacity:       10000,
			Workers:        4,
			MaxAttempts:    5,
			RetryDelayBase: 2 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval: time.Second,
		},
		Monitor: MonitorConfig{
			HistoryLength: 100,
			TickInterval:  5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			MetricsEnabled: true,
			TracingEnabled: true,
			Insecure:       true,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 3,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: time.Second,
				MaxInterval:     30 * time.Second,
				Multiplier:      2.0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadFromEnv overlays environment variables on top of the current values.
// Only variables that are actually set are applied; unset variables leave
// the existing value (default or previously-set) untouched.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("INGESTCORE_SERVICE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else if c.logger != nil {
			c.logger.Warn("invalid port in environment", map[string]interface{}{
				"INGESTCORE_PORT": v, "error": err,
			})
		}
	}
	if v := os.Getenv("INGESTCORE_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Registry.RedisURL = v
	}
	if v := os.Getenv("INGESTCORE_REGISTRY_BACKEND"); v != "" {
		c.Registry.Backend = v
	}
	if v := os.Getenv("INGESTCORE_REGISTRY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Registry.TTL = d
		}
	}

	if v := os.Getenv("INGESTCORE_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.Capacity = n
		}
	}
	if v := os.Getenv("INGESTCORE_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.Workers = n
		}
	}
	if v := os.Getenv("INGESTCORE_QUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.MaxAttempts = n
		}
	}
	if v := os.Getenv("INGESTCORE_QUEUE_RETRY_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Queue.RetryDelayBase = d
		}
	}

	if v := os.Getenv("INGESTCORE_SCHEDULER_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scheduler.TickInterval = d
		}
	}

	if v := os.Getenv("INGESTCORE_MONITOR_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Monitor.HistoryLength = n
		}
	}
	if v := os.Getenv("INGESTCORE_MONITOR_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Monitor.TickInterval = d
		}
	}

	if v := os.Getenv(EnvOTLPTarget); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
	}

	return nil
}

// Validate checks the final configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range: %w", c.Port, ErrConfigInvalid)
	}
	if c.Registry.Backend == "redis" && c.Registry.RedisURL == "" {
		return fmt.Errorf("registry backend redis requires a redis url: %w", ErrConfigInvalid)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive: %w", ErrConfigInvalid)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive: %w", ErrConfigInvalid)
	}
	if c.Monitor.HistoryLength <= 0 {
		return fmt.Errorf("monitor history length must be positive: %w", ErrConfigInvalid)
	}
	return nil
}

// WithPort overrides the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) error {
		c.Port = port
		return nil
	}
}

// WithRedisURL configures a Redis-backed registry at the given URL.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Registry.RedisURL = url
		c.Registry.Backend = "redis"
		return nil
	}
}

// WithNamespace overrides the key namespace used for Redis-backed state.
func WithNamespace(ns string) Option {
	return func(c *Config) error {
		c.Namespace = ns
		return nil
	}
}

// WithLogger supplies a pre-built Logger, bypassing ProductionLogger
// construction entirely.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig builds a Config in three layers: defaults, environment
// variables, then functional options, validating the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Logger returns the configuration's logger instance.
func (c *Config) Logger() Logger {
	return c.logger
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// ============================================================================
// ProductionLogger — layered structured logging
// ============================================================================

// ProductionLogger emits JSON (production) or human-readable (development)
// log lines and, once a metrics registry is available, mirrors every log
// event as a counter.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger builds a logger from LoggingConfig and DevelopmentConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		debug:       dev.DebugLogging || logging.Level == "debug",
		serviceName: serviceName,
		component:   "ingestiond",
		format:      logging.Format,
		output:      output,
	}
}

// EnableMetrics is called once the observability package registers a
// MetricsRegistry, switching on metric mirroring for every log event.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

// WithComponent returns a logger scoped to the given component label.
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s%s\n",
			timestamp, level, p.serviceName, p.component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, msg, fields, ctx)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", p.component,
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "connector_type", "kind":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "ingestcore.log.events", 1.0, labels...)
	} else {
		emitMetric("ingestcore.log.events", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
