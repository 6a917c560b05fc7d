// Package store defines the narrow persistence interface the ingestion core
// depends on (spec.md §1: "the alert/threat-intel persistent store is an
// opaque DAO ... used only through narrow interfaces") plus two
// implementations: an in-memory Store for tests and single-process
// deployments, and a Redis-backed Store for operators who want connector
// configuration and alerts to survive a restart.
package store

import (
	"context"
	"time"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

// ConnectorRow is the persisted shape of one connector configuration, per
// spec.md §6: "one row per connector".
type ConnectorRow struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	Name           string                 `json:"name"`
	Vendor         string                 `json:"vendor"`
	Type           domain.ConnectorType   `json:"type"`
	IsActive       bool                   `json:"isActive"`
	Status         domain.ConnectorStatus `json:"status"`
	Configuration  domain.ConnectorConfig `json:"configuration"`
}

// ThreatIntelRecord is the record CreateThreatIntel persists. The pipeline
// does not call CreateThreatIntel.
type ThreatIntelRecord struct {
	Indicator      string                 `json:"indicator"`
	Kind           string                 `json:"kind"`
	OrganizationID string                 `json:"organizationId"`
	Details        map[string]interface{} `json:"details"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Store is the full persistence surface the core depends on. Every method
// is safe for concurrent use; implementations are responsible for their own
// concurrency control (spec.md §5: "the Store is assumed to provide its own
// concurrency safety").
type Store interface {
	ListConnectors(ctx context.Context) ([]ConnectorRow, error)
	GetConnector(ctx context.Context, id string) (ConnectorRow, error)
	UpdateConnector(ctx context.Context, id string, mutate func(*ConnectorRow)) (ConnectorRow, error)
	CreateAlert(ctx context.Context, alert domain.Alert) (string, error)
	CreateThreatIntel(ctx context.Context, record ThreatIntelRecord) error

	// Agent rows back the agent adapter's HTTP surface (§6); they are not
	// part of the distilled spec's DAO but are required to implement it,
	// per SPEC_FULL.md §3 AgentRecord.
	CreateAgent(ctx context.Context, agent domain.AgentRecord) error
	GetAgentByID(ctx context.Context, agentID string) (domain.AgentRecord, error)
	UpdateAgent(ctx context.Context, agentID string, mutate func(*domain.AgentRecord)) (domain.AgentRecord, error)
	ListAgentsByConnector(ctx context.Context, connectorID string) ([]domain.AgentRecord, error)
}
