// Package domain holds the data model shared by every ingestion component:
// connector configuration, raw and structured events, alerts, and queue
// jobs. Nothing in this package talks to the network, a store, or a clock —
// it is pure types plus the small pure functions (severity ranking, title
// truncation) the rest of the system builds on.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnectorType selects which source adapter a connector binds to.
type ConnectorType string

const (
	ConnectorTypeAPI     ConnectorType = "api"
	ConnectorTypeSyslog  ConnectorType = "syslog"
	ConnectorTypeAgent   ConnectorType = "agent"
	ConnectorTypeWebhook ConnectorType = "webhook"
)

func (t ConnectorType) Valid() bool {
	switch t {
	case ConnectorTypeAPI, ConnectorTypeSyslog, ConnectorTypeAgent, ConnectorTypeWebhook:
		return true
	}
	return false
}

// ConnectorStatus is the lifecycle state of a connector.
type ConnectorStatus string

const (
	StatusActive   ConnectorStatus = "active"
	StatusPaused   ConnectorStatus = "paused"
	StatusError    ConnectorStatus = "error"
	StatusDisabled ConnectorStatus = "disabled"
)

// Severity is totally ordered: Critical > High > Medium > Low > Info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank maps a severity to its position in the total order, higher
// is more severe. Used by Rank and AtLeast.
var severityRank = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// Rank returns the severity's position in the total order; unknown
// severities rank below Info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return 0
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Priority is the job queue's four priority bands.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityOrder is the dequeue order, highest band first.
var priorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// PriorityOrder returns the bands in dequeue order.
func PriorityOrder() []Priority {
	out := make([]Priority, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

// RawEvent is the immutable message an adapter emits. Payload and Metadata
// are opaque records decoded by the pipeline's parser stage.
type RawEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Tags      []string               `json:"tags"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// NewRawEvent builds a RawEvent with a fresh UUID and the current timestamp
// stamped by the caller (adapters pass in the time they observed the event,
// not time.Now, so tests stay deterministic).
func NewRawEvent(ts time.Time, source, eventType string, payload map[string]interface{}, tags []string, metadata map[string]interface{}) RawEvent {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return RawEvent{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Source:    source,
		Type:      eventType,
		Payload:   payload,
		Tags:      tags,
		Metadata:  metadata,
	}
}

// MetadataString returns metadata[key] as a string, or "" if absent or not
// a string.
func (e RawEvent) MetadataString(key string) string {
	v, ok := e.Metadata[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// ConnectorID is shorthand for MetadataString("connectorId").
func (e RawEvent) ConnectorID() string { return e.MetadataString("connectorId") }

// OrganizationID is shorthand for MetadataString("organizationId").
func (e RawEvent) OrganizationID() string { return e.MetadataString("organizationId") }

// StructuredData is the post-parse, pre-enrichment event shape.
type StructuredData struct {
	Timestamp       time.Time              `json:"timestamp"`
	Severity        Severity               `json:"severity"`
	Source          string                 `json:"source"`
	SourceIP        string                 `json:"sourceIp,omitempty"`
	DestinationIP   string                 `json:"destinationIp,omitempty"`
	Message         string                 `json:"message"`
	Data            map[string]interface{} `json:"data"`
}

// EnrichedData augments StructuredData with best-effort lookups. Any field
// here may be absent: enrichment failure of one capability never blocks
// the others or the phase.
type EnrichedData struct {
	StructuredData
	Enrichments       map[string]interface{} `json:"enrichments"`
	Context           map[string]interface{} `json:"context,omitempty"`
	RecommendedAction string                  `json:"recommendedAction,omitempty"`
	Insight           string                  `json:"insight,omitempty"`
}

// MaxTitleLength is the hard cap on Alert.Title, per the message it was
// truncated from.
const MaxTitleLength = 100

// AlertStatus is always "new" at creation; nothing in this package
// transitions it further, that lives downstream of the Store.
const AlertStatusNew = "new"

// Alert is the persisted record written by the pipeline's Persistence
// phase.
type Alert struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Severity        Severity               `json:"severity"`
	Source          string                 `json:"source"`
	SourceIP        string                 `json:"sourceIp,omitempty"`
	DestinationIP   string                 `json:"destinationIp,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Status          string                 `json:"status"`
	OrganizationID  string                 `json:"organizationId"`
	ConnectorID     string                 `json:"connectorId"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// TruncateTitle returns msg truncated to MaxTitleLength runes, unchanged if
// it already fits.
func TruncateTitle(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxTitleLength {
		return msg
	}
	return string(r[:MaxTitleLength])
}

// JobKind distinguishes a queued ingested event from a queued instruction
// to run a pull connector's poll cycle. Both travel through the same
// priority bands (spec.md §4.3: "enqueues ... to the job queue, not direct
// invocation, to bound concurrency centrally").
type JobKind string

const (
	JobKindEvent   JobKind = "event"
	JobKindRunOnce JobKind = "runOnce"
)

// QueueJob is one unit of work processed by the priority queue.
type QueueJob struct {
	ID                  string     `json:"id"`
	Kind                JobKind    `json:"kind"`
	ConnectorID         string     `json:"connectorId"`
	Data                RawEvent   `json:"data"`
	DataSource          string     `json:"dataSource"`
	Priority            Priority   `json:"priority"`
	Attempts            int        `json:"attempts"`
	MaxAttempts         int        `json:"maxAttempts"`
	CreatedAt           time.Time  `json:"createdAt"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	Error               string     `json:"error,omitempty"`
}

// MaxAttemptsFor returns the retry budget for a job of the given priority:
// 5 for critical, 3 otherwise.
func MaxAttemptsFor(p Priority) int {
	if p == PriorityCritical {
		return 5
	}
	return 3
}

// MetricsSnapshot is a point-in-time view of a connector's counters plus a
// derived throughput figure computed by the realtime monitor from adjacent
// history points.
type MetricsSnapshot struct {
	ConnectorID       string    `json:"connectorId"`
	Timestamp         time.Time `json:"timestamp"`
	Status            ConnectorStatus `json:"status"`
	EventsProcessed   int64     `json:"eventsProcessed"`
	BytesProcessed    int64     `json:"bytesProcessed"`
	ErrorCount        int       `json:"errorCount"`
	UptimeSec         float64   `json:"uptimeSec"`
	AvgResponseTimeMs float64   `json:"avgResponseTimeMs"`
	LastEventAt       *time.Time `json:"lastEventAt,omitempty"`
	ThroughputPerMin  float64   `json:"throughputPerMin"`
}

// Throughput computes events/min between two adjacent snapshots of the same
// connector, returning 0 if the uptime delta is non-positive (guards the
// "fewer than two history points" boundary case upstream).
func Throughput(prev, now MetricsSnapshot) float64 {
	deltaEvents := now.EventsProcessed - prev.EventsProcessed
	deltaMinutes := (now.UptimeSec - prev.UptimeSec) / 60.0
	if deltaMinutes <= 0 {
		return 0
	}
	return float64(deltaEvents) / deltaMinutes
}

// AgentStatus is the lifecycle state of a registered agent row.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)

// AgentRecord backs the agent adapter's HTTP surface (register/heartbeat/
// data/config). Not named in spec.md directly, but required to implement
// its four agent endpoints.
type AgentRecord struct {
	AgentID         string                 `json:"agentId"`
	Token           string                 `json:"-"`
	ConnectorID     string                 `json:"connectorId"`
	OrganizationID  string                 `json:"organizationId"`
	Hostname        string                 `json:"hostname"`
	IPAddress       string                 `json:"ipAddress"`
	OperatingSystem string                 `json:"operatingSystem"`
	Version         string                 `json:"version"`
	Capabilities    []string               `json:"capabilities,omitempty"`
	Status          AgentStatus            `json:"status"`
	LastHeartbeat   *time.Time             `json:"lastHeartbeat,omitempty"`
	LastMetrics     map[string]interface{} `json:"lastMetrics,omitempty"`
}
