package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/domain"
)

// Redis is a Store backed by platform.RedisClient. Connector rows, alerts,
// threat intel, and agent rows each get their own key prefix within the
// registry DB (spec.md treats the Store as one opaque collaborator; the
// DB-isolation scheme is platform.RedisClient's, grounded on
// core.RedisRegistry).
//
// Alerts and threat intel are append-only lists (Redis lists), connector
// rows and agent rows are individually keyed hashes-as-JSON-strings, the
// same "namespace:kind:id" key shape core.RedisRegistry uses for service
// records.
type Redis struct {
	client *core.RedisClient
}

// NewRedis wraps an already-constructed platform.RedisClient. Use
// platform.NewRedisClient(platform.RedisClientOptions{DB: platform.RedisDBRegistry, ...})
// to build the client with the registry DB and namespace.
func NewRedis(client *core.RedisClient) *Redis {
	return &Redis{client: client}
}

func connectorKey(id string) string { return fmt.Sprintf("connector:%s", id) }
func agentKey(id string) string     { return fmt.Sprintf("agent:%s", id) }

// connectorIndexKey is a Redis set of every known connector id, so
// ListConnectors doesn't need a KEYS scan.
const connectorIndexKey = "connector:index"
const agentIndexKey = "agent:index"

func (r *Redis) ListConnectors(ctx context.Context) ([]ConnectorRow, error) {
	ids, err := r.client.Raw().SMembers(ctx, r.client.FormatKey(connectorIndexKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", core.ErrStore)
	}
	out := make([]ConnectorRow, 0, len(ids))
	for _, id := range ids {
		row, err := r.GetConnector(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *Redis) GetConnector(ctx context.Context, id string) (ConnectorRow, error) {
	raw, err := r.client.Get(ctx, connectorKey(id))
	if err != nil {
		return ConnectorRow{}, core.ErrConnectorNotFound
	}
	var row ConnectorRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return ConnectorRow{}, fmt.Errorf("decode connector %s: %w", id, core.ErrStore)
	}
	return row, nil
}

// PutConnector writes (or overwrites) a connector row and indexes its id.
// Used by bootstrap to seed the store from a static configuration file.
func (r *Redis) PutConnector(ctx context.Context, row ConnectorRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode connector %s: %w", row.ID, core.ErrStore)
	}
	if err := r.client.Set(ctx, connectorKey(row.ID), string(data), 0); err != nil {
		return fmt.Errorf("put connector %s: %w", row.ID, core.ErrStore)
	}
	return r.client.Raw().SAdd(ctx, r.client.FormatKey(connectorIndexKey), row.ID).Err()
}

func (r *Redis) UpdateConnector(ctx context.Context, id string, mutate func(*ConnectorRow)) (ConnectorRow, error) {
	row, err := r.GetConnector(ctx, id)
	if err != nil {
		return ConnectorRow{}, err
	}
	mutate(&row)
	if err := r.PutConnector(ctx, row); err != nil {
		return ConnectorRow{}, err
	}
	return row, nil
}

func (r *Redis) CreateAlert(ctx context.Context, alert domain.Alert) (string, error) {
	id := fmt.Sprintf("%s-%d", alert.ConnectorID, alert.Timestamp.UnixNano())
	data, err := json.Marshal(alert)
	if err != nil {
		return "", fmt.Errorf("encode alert: %w", core.ErrStore)
	}
	if err := r.client.Raw().RPush(ctx, r.client.FormatKey("alerts"), data).Err(); err != nil {
		return "", fmt.Errorf("create alert: %w", core.ErrStore)
	}
	return id, nil
}

func (r *Redis) CreateThreatIntel(ctx context.Context, record ThreatIntelRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode threat intel: %w", core.ErrStore)
	}
	if err := r.client.Raw().RPush(ctx, r.client.FormatKey("threat_intel"), data).Err(); err != nil {
		return fmt.Errorf("create threat intel: %w", core.ErrStore)
	}
	return nil
}

func (r *Redis) CreateAgent(ctx context.Context, agent domain.AgentRecord) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("encode agent %s: %w", agent.AgentID, core.ErrStore)
	}
	if err := r.client.Set(ctx, agentKey(agent.AgentID), string(data), 0); err != nil {
		return fmt.Errorf("create agent %s: %w", agent.AgentID, core.ErrStore)
	}
	return r.client.Raw().SAdd(ctx, r.client.FormatKey(agentIndexKey), agent.AgentID).Err()
}

func (r *Redis) GetAgentByID(ctx context.Context, agentID string) (domain.AgentRecord, error) {
	raw, err := r.client.Get(ctx, agentKey(agentID))
	if err != nil {
		return domain.AgentRecord{}, core.ErrConnectorNotFound
	}
	var agent domain.AgentRecord
	if err := json.Unmarshal([]byte(raw), &agent); err != nil {
		return domain.AgentRecord{}, fmt.Errorf("decode agent %s: %w", agentID, core.ErrStore)
	}
	return agent, nil
}

func (r *Redis) UpdateAgent(ctx context.Context, agentID string, mutate func(*domain.AgentRecord)) (domain.AgentRecord, error) {
	agent, err := r.GetAgentByID(ctx, agentID)
	if err != nil {
		return domain.AgentRecord{}, err
	}
	mutate(&agent)
	if err := r.CreateAgent(ctx, agent); err != nil {
		return domain.AgentRecord{}, err
	}
	return agent, nil
}

func (r *Redis) ListAgentsByConnector(ctx context.Context, connectorID string) ([]domain.AgentRecord, error) {
	ids, err := r.client.Raw().SMembers(ctx, r.client.FormatKey(agentIndexKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", core.ErrStore)
	}
	var out []domain.AgentRecord
	for _, id := range ids {
		a, err := r.GetAgentByID(ctx, id)
		if err != nil {
			continue
		}
		if a.ConnectorID == connectorID {
			out = append(out, a)
		}
	}
	return out, nil
}

var _ Store = (*Redis)(nil)
