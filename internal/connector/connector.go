package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	"github.com/quayside-soc/ingestcore/internal/store"
)

// quarantineThreshold is the consecutive-error count that auto-disables a
// connector (spec.md §3 invariant, §4.1 auto-quarantine state machine).
const quarantineThreshold = 5

// StatusChangeEvent is published on TopicStatusChange.
type StatusChangeEvent struct {
	ConnectorID string
	Previous    domain.ConnectorStatus
	Current     domain.ConnectorStatus
	Message     string
}

// ConnectorRegisteredEvent is published on TopicConnectorRegistered so
// late-starting components (pipeline, monitor) can attach without an
// ordering dependency on the registry.
type ConnectorRegisteredEvent struct {
	Connector *Connector
}

// ConnectorEventEmitted is published on TopicConnectorEvent whenever a
// connector successfully hands an event to its sink, primarily consumed by
// the realtime monitor.
type ConnectorEventEmitted struct {
	ConnectorID string
	Event       domain.RawEvent
}

// Connector is a configured binding of one source adapter to one
// organization and one schedule (spec.md §4.1). All mutation goes through
// its exported methods; state is protected by mu.
type Connector struct {
	mu sync.Mutex

	id             string
	organizationID string
	name           string
	connType       domain.ConnectorType
	config         domain.ConnectorConfig

	status                   domain.ConnectorStatus
	lastSuccessfulConnection *time.Time
	nextRun                  time.Time
	errorCount               int
	lastError                string
	cursorState              domain.CursorState

	eventsProcessed   int64
	bytesProcessed    int64
	uptimeSince       *time.Time
	avgResponseTimeMs float64
	lastEventAt       *time.Time
	sampleCount       int64

	adapter    SourceAdapter
	sink       EventSink // passed to the adapter at construction; calls back into emit
	downstream EventSink // externally wired destination (the job queue in production)
	bus        *eventbus.Bus
	st         store.Store
	logger     core.Logger

	started bool
}

// Config bundles the inputs New needs, grouped to keep the constructor
// signature stable as fields are added.
type Config struct {
	ID             string
	OrganizationID string
	Name           string
	Type           domain.ConnectorType
	Configuration  domain.ConnectorConfig
	Adapter        SourceAdapter
	Bus            *eventbus.Bus
	Store          store.Store
	Logger         core.Logger
}

// New constructs a Connector in StatusPaused. It does not start the
// adapter; call Start for that.
func New(cfg Config) (*Connector, error) {
	if err := cfg.Configuration.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", cfg.ID, core.ErrConfigInvalid, err)
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("%s: %w: no adapter supplied", cfg.ID, core.ErrConfigInvalid)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	c := &Connector{
		id:             cfg.ID,
		organizationID: cfg.OrganizationID,
		name:           cfg.Name,
		connType:       cfg.Type,
		config:         cfg.Configuration,
		status:         domain.StatusPaused,
		adapter:        cfg.Adapter,
		bus:            cfg.Bus,
		st:             cfg.Store,
		logger:         logger,
	}
	c.sink = EventSinkFunc(c.emit)
	return c, nil
}

func (c *Connector) ID() string                       { return c.id }
func (c *Connector) OrganizationID() string           { return c.organizationID }
func (c *Connector) Name() string                      { return c.name }
func (c *Connector) Type() domain.ConnectorType        { return c.connType }
func (c *Connector) Sink() EventSink                   { return c.sink }

func (c *Connector) Status() domain.ConnectorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Config returns a copy of the connector's current configuration.
func (c *Connector) Config() domain.ConnectorConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// NextRun returns the next scheduled poll time, used by the scheduler.
func (c *Connector) NextRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextRun
}

// SetNextRun is called by the scheduler after enqueuing a poll task.
func (c *Connector) SetNextRun(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRun = t
}

// PollIntervalSec returns the configured poll interval, defaulting through
// ConnectorConfig.Validate's normalization.
func (c *Connector) PollIntervalSec() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.PollIntervalSec
}

// Start is idempotent: calling it on an already-active connector is a
// no-op success.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status == domain.StatusActive {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.adapter.Start(ctx); err != nil {
		c.SetStatus(domain.StatusError, err.Error())
		return fmt.Errorf("%s: %w: %v", c.id, core.ErrAdapterUnavailable, err)
	}

	c.mu.Lock()
	now := time.Now()
	c.lastSuccessfulConnection = &now
	if c.uptimeSince == nil {
		c.uptimeSince = &now
	}
	c.started = true
	c.mu.Unlock()

	c.SetStatus(domain.StatusActive, "")
	return nil
}

// Stop transitions to paused from any state and is always safe to call.
func (c *Connector) Stop(ctx context.Context) error {
	err := c.adapter.Stop(ctx)
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
	c.SetStatus(domain.StatusPaused, "")
	return err
}

// RunOnce delegates to the adapter and records success/failure through the
// same status machine as everything else.
func (c *Connector) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := c.adapter.RunOnce(ctx)
	c.recordResponseTime(time.Since(start))
	if err != nil {
		c.SetStatus(domain.StatusError, err.Error())
		return err
	}
	if c.Status() != domain.StatusDisabled {
		c.SetStatus(domain.StatusActive, "")
	}
	return nil
}

// TestConnection never mutates cursor state or counters.
func (c *Connector) TestConnection(ctx context.Context) (bool, string, error) {
	return c.adapter.TestConnection(ctx)
}

// UpdateConfig merges partial into the stored configuration, persists the
// result, and emits config-updated. Must not change Type.
func (c *Connector) UpdateConfig(ctx context.Context, mutate func(*domain.ConnectorConfig)) error {
	c.mu.Lock()
	merged := c.config
	mutate(&merged)
	merged.Type = c.connType // type is immutable
	if err := merged.Validate(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w: %v", c.id, core.ErrConfigInvalid, err)
	}
	c.config = merged
	c.mu.Unlock()

	if c.st != nil {
		if _, err := c.st.UpdateConnector(ctx, c.id, func(row *store.ConnectorRow) {
			row.Configuration = merged
		}); err != nil {
			return fmt.Errorf("%s: %w: %v", c.id, core.ErrStore, err)
		}
	}
	if c.bus != nil {
		c.bus.Publish(eventbus.TopicConfigUpdated, ConnectorRegisteredEvent{Connector: c})
	}
	return nil
}

// SetStatus implements the auto-quarantine state machine from spec.md
// §4.1. A no-op transition (new == previous) still applies the error-count
// / reset side effects but never double-emits status-change.
func (c *Connector) SetStatus(status domain.ConnectorStatus, message string) {
	c.mu.Lock()
	previous := c.status
	changed := previous != status
	c.status = status

	switch status {
	case domain.StatusError:
		c.errorCount++
		c.lastError = message
	case domain.StatusActive:
		c.errorCount = 0
		c.lastError = ""
	}
	quarantine := status == domain.StatusError && c.errorCount >= quarantineThreshold
	c.mu.Unlock()

	if changed {
		if c.logger != nil {
			c.logger.Info("connector status change", map[string]interface{}{
				"connectorId": c.id, "previous": previous, "current": status, "message": message,
			})
		}
		if c.bus != nil {
			c.bus.Publish(eventbus.TopicStatusChange, StatusChangeEvent{
				ConnectorID: c.id, Previous: previous, Current: status, Message: message,
			})
		}
		if c.st != nil {
			_, _ = c.st.UpdateConnector(context.Background(), c.id, func(row *store.ConnectorRow) {
				row.Status = status
			})
		}
	}

	if quarantine {
		c.SetStatus(domain.StatusDisabled, "auto-disabled")
		if c.bus != nil {
			c.bus.Publish(eventbus.TopicAutoDisabled, StatusChangeEvent{
				ConnectorID: c.id, Previous: domain.StatusError, Current: domain.StatusDisabled, Message: "auto-disabled",
			})
		}
	}
}

// ErrorCount returns the current consecutive-error count.
func (c *Connector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCount
}

// LastError returns the message from the most recent error status.
func (c *Connector) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// CursorState returns a copy of the adapter's resumption token.
func (c *Connector) CursorState() domain.CursorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursorState
}

// AdvanceCursor replaces the cursor state, enforcing the monotone
// LastEventTimestamp invariant (spec.md §3): a call that would rewind the
// timestamp is ignored rather than applied.
func (c *Connector) AdvanceCursor(next domain.CursorState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !next.LastEventTimestamp.IsZero() && !c.cursorState.LastEventTimestamp.IsZero() &&
		next.LastEventTimestamp.Before(c.cursorState.LastEventTimestamp) {
		return
	}
	c.cursorState = next
	now := time.Now()
	c.lastSuccessfulConnection = &now
}

// emit is the EventSink implementation passed to the adapter at
// construction: it forwards to the externally-wired sink (the job queue, in
// production) and only bumps counters and publishes connector:event once
// that forward succeeds, so a queue-full drop is never counted as processed.
func (c *Connector) emit(ctx context.Context, event domain.RawEvent) error {
	c.mu.Lock()
	downstream := c.downstream
	c.mu.Unlock()

	if downstream != nil {
		if err := downstream.Emit(ctx, event); err != nil {
			return err
		}
	}

	// Counters and the connector:event notification reflect events that
	// actually made it past the sink - a queue-full drop must not count as
	// processed (spec.md §8 invariant: dropped events never reach metrics).
	c.mu.Lock()
	c.eventsProcessed++
	c.bytesProcessed += int64(estimateSize(event))
	now := time.Now()
	c.lastEventAt = &now
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(eventbus.TopicConnectorEvent, ConnectorEventEmitted{ConnectorID: c.id, Event: event})
	}
	return nil
}

// estimateSize gives a rough byte count for MetricsSnapshot.BytesProcessed;
// JSON-encoding the payload is good enough for an approximate counter and
// avoids hand-rolling a size walk over an opaque map.
func estimateSize(event domain.RawEvent) int {
	encoded, err := json.Marshal(event.Payload)
	if err != nil {
		return len(event.Source) + len(event.Type)
	}
	return len(encoded)
}

func (c *Connector) recordResponseTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := float64(d.Milliseconds())
	c.sampleCount++
	c.avgResponseTimeMs += (ms - c.avgResponseTimeMs) / float64(c.sampleCount)
}

// GetMetrics returns an O(1) snapshot of the connector's counters.
func (c *Connector) GetMetrics() domain.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var uptime float64
	if c.uptimeSince != nil {
		uptime = time.Since(*c.uptimeSince).Seconds()
	}
	return domain.MetricsSnapshot{
		ConnectorID:       c.id,
		Timestamp:         time.Now(),
		Status:            c.status,
		EventsProcessed:   c.eventsProcessed,
		BytesProcessed:    c.bytesProcessed,
		ErrorCount:        c.errorCount,
		UptimeSec:         uptime,
		AvgResponseTimeMs: c.avgResponseTimeMs,
		LastEventAt:       c.lastEventAt,
	}
}

// BindSink rewires where emitted events go. Bootstrap calls this once,
// after constructing the queue, to point the connector's EventSink at
// queue.Enqueue instead of the default no-op-beyond-counters sink.
func (c *Connector) BindSink(sink EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downstream = sink
}
