package platform

import "time"

// Environment variables recognized by ingestcore's process-level configuration.
const (
	EnvRedisURL   = "INGESTCORE_REDIS_URL"
	EnvNamespace  = "INGESTCORE_NAMESPACE"
	EnvPort       = "INGESTCORE_PORT"
	EnvDevMode    = "INGESTCORE_DEV_MODE"
	EnvOTLPTarget = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvLogLevel   = "INGESTCORE_LOG_LEVEL"
	EnvLogFormat  = "INGESTCORE_LOG_FORMAT"
	EnvConfigPath = "INGESTCORE_CONFIG_PATH"
)

// DefaultNamespace prefixes every key this process writes to a shared Redis
// instance (connector registry indexes, store rows).
const DefaultNamespace = "ingestcore"

// DefaultRegistryTTL is how long a connector's registry entry survives
// without a refresh before it is considered stale.
const DefaultRegistryTTL = 30 * time.Second
