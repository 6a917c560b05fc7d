// Package agent implements the agent (passive) source adapter (spec.md
// §4.2): it never opens a listener of its own. Events arrive via its own
// ProcessEvents/ProcessHeartbeat methods, called by the HTTP surface after
// it authenticates the caller's bearer token.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/store"
)

// RegistrationRequest is what an agent posts to /api/agents/register.
type RegistrationRequest struct {
	OrganizationKey string
	Hostname        string
	IPAddress       string
	OperatingSystem string
	Version         string
	Capabilities    []string
}

// EventPayload is one record an agent posts to /api/agents/data.
type EventPayload struct {
	Timestamp time.Time
	Type      string
	Data      map[string]interface{}
}

// Adapter tracks registered agents and their last-seen state. It is a
// SourceAdapter in name only (Start/Stop/RunOnce are no-ops or cache
// refreshes); all real work happens through RegisterAgent/ProcessHeartbeat/
// ProcessEvents, called from the agent HTTP handlers. Agent records are
// persisted through Store; the in-memory map is a read cache for the hot
// heartbeat/event path, not the system of record.
type Adapter struct {
	connectorID    string
	organizationID string
	config         domain.AgentConfig
	sink           connector.EventSink
	store          store.Store
	logger         core.Logger

	mu          sync.Mutex
	agents      map[string]*domain.AgentRecord
	activeCount int
}

type Config struct {
	ConnectorID    string
	OrganizationID string
	Configuration  domain.AgentConfig
	Sink           connector.EventSink
	Store          store.Store
	Logger         core.Logger
}

func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Adapter{
		connectorID:    cfg.ConnectorID,
		organizationID: cfg.OrganizationID,
		config:         cfg.Configuration,
		sink:           cfg.Sink,
		store:          cfg.Store,
		logger:         logger,
		agents:         make(map[string]*domain.AgentRecord),
	}
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error  { return nil }

// RunOnce refreshes the cached active-agent count; there is no polling work
// for a passive adapter (spec.md §4.2).
func (a *Adapter) RunOnce(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	count := 0
	for _, rec := range a.agents {
		if rec.Status == domain.AgentStatusActive {
			count++
		}
	}
	a.activeCount = count
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) (bool, string, error) {
	if !a.config.RegistrationEnabled {
		return false, "agent registration disabled", nil
	}
	return true, "ok", nil
}

// ActiveAgentCount returns the cached count RunOnce last computed.
func (a *Adapter) ActiveAgentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeCount
}

// RegisterAgent admits a new agent if its organizationKey matches the
// connector's configuration. Returns the new record; the caller (httpapi)
// mints the bearer token.
func (a *Adapter) RegisterAgent(ctx context.Context, req RegistrationRequest) (*domain.AgentRecord, error) {
	if !a.config.RegistrationEnabled {
		return nil, fmt.Errorf("%w: agent registration disabled", core.ErrConfigInvalid)
	}
	if req.OrganizationKey != a.config.OrganizationKey {
		return nil, fmt.Errorf("%w: organization key mismatch", core.ErrConfigInvalid)
	}

	status := domain.AgentStatusActive
	if a.config.RegistrationRequiresApproval {
		status = domain.AgentStatusInactive
	}

	rec := &domain.AgentRecord{
		AgentID:         uuid.NewString(),
		ConnectorID:     a.connectorID,
		OrganizationID:  a.organizationID,
		Hostname:        req.Hostname,
		IPAddress:       req.IPAddress,
		OperatingSystem: req.OperatingSystem,
		Version:         req.Version,
		Capabilities:    req.Capabilities,
		Status:          status,
	}

	if a.store != nil {
		if err := a.store.CreateAgent(ctx, *rec); err != nil {
			return nil, fmt.Errorf("persist agent record: %w", err)
		}
	}

	a.mu.Lock()
	a.agents[rec.AgentID] = rec
	a.mu.Unlock()
	return rec, nil
}

// ProcessHeartbeat records that agentID is alive and updates its cached
// last-known metrics snapshot, persisting the update through Store.
func (a *Adapter) ProcessHeartbeat(ctx context.Context, agentID string, metrics map[string]interface{}) error {
	a.mu.Lock()
	rec, ok := a.agents[agentID]
	a.mu.Unlock()
	if !ok {
		return core.ErrConnectorNotFound
	}

	now := time.Now()
	if a.store != nil {
		updated, err := a.store.UpdateAgent(ctx, agentID, func(r *domain.AgentRecord) {
			r.LastHeartbeat = &now
			r.LastMetrics = metrics
		})
		if err != nil {
			return fmt.Errorf("persist heartbeat: %w", err)
		}
		a.mu.Lock()
		a.agents[agentID] = &updated
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	rec.LastHeartbeat = &now
	rec.LastMetrics = metrics
	a.mu.Unlock()
	return nil
}

// ProcessEvents converts each payload into a RawEvent tagged with the
// originating agent and emits it through the connector's sink. One failed
// emit does not abort the remaining events in the batch.
func (a *Adapter) ProcessEvents(ctx context.Context, agentID string, payloads []EventPayload) error {
	a.mu.Lock()
	rec, ok := a.agents[agentID]
	a.mu.Unlock()
	if !ok {
		return core.ErrConnectorNotFound
	}

	var firstErr error
	for _, p := range payloads {
		event := domain.NewRawEvent(p.Timestamp, "agent:"+agentID, p.Type, p.Data, nil, map[string]interface{}{
			"connectorId":    rec.ConnectorID,
			"organizationId": rec.OrganizationID,
			"agentId":        agentID,
		})
		if err := a.sink.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OrganizationKey exposes the shared secret httpapi matches an incoming
// registration request's organizationKey against, to find which connector's
// adapter should handle it.
func (a *Adapter) OrganizationKey() string { return a.config.OrganizationKey }

// ConnectorID is the connector this adapter is bound to.
func (a *Adapter) ConnectorID() string { return a.connectorID }

// Config returns the adapter's configuration payload, for the /api/agents/config
// endpoint to echo back heartbeat interval, batch size, and capabilities.
func (a *Adapter) Config() domain.AgentConfig { return a.config }

// Agent looks up a registered agent by ID, for the HTTP handlers that
// authenticate a bearer token back to its record.
func (a *Adapter) Agent(agentID string) (*domain.AgentRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.agents[agentID]
	return rec, ok
}

var _ connector.SourceAdapter = (*Adapter)(nil)
