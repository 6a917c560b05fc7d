package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/domain"
)

// InMemory is a process-local Store, used by tests and by single-process
// deployments that don't need configuration to survive a restart. It
// mirrors the mutex-protected map idiom of platform.MemoryStore.
type InMemory struct {
	mu         sync.RWMutex
	connectors map[string]ConnectorRow
	alerts     []domain.Alert
	intel      []ThreatIntelRecord
	agents     map[string]domain.AgentRecord
}

// NewInMemory constructs an empty in-memory Store, optionally seeded with
// connector rows (as bootstrap would load from a static config file).
func NewInMemory(seed ...ConnectorRow) *InMemory {
	s := &InMemory{
		connectors: make(map[string]ConnectorRow),
		agents:     make(map[string]domain.AgentRecord),
	}
	for _, row := range seed {
		s.connectors[row.ID] = row
	}
	return s
}

func (s *InMemory) ListConnectors(ctx context.Context) ([]ConnectorRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConnectorRow, 0, len(s.connectors))
	for _, row := range s.connectors {
		out = append(out, row)
	}
	return out, nil
}

func (s *InMemory) GetConnector(ctx context.Context, id string) (ConnectorRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.connectors[id]
	if !ok {
		return ConnectorRow{}, core.ErrConnectorNotFound
	}
	return row, nil
}

func (s *InMemory) UpdateConnector(ctx context.Context, id string, mutate func(*ConnectorRow)) (ConnectorRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.connectors[id]
	if !ok {
		return ConnectorRow{}, core.ErrConnectorNotFound
	}
	mutate(&row)
	s.connectors[id] = row
	return row, nil
}

// PutConnector inserts or replaces a row outright; used by bootstrap to
// seed the store and by tests.
func (s *InMemory) PutConnector(row ConnectorRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectors[row.ID] = row
}

func (s *InMemory) CreateAlert(ctx context.Context, alert domain.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return uuid.NewString(), nil
}

// Alerts returns a snapshot of everything persisted so far, for assertions
// in tests.
func (s *InMemory) Alerts() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func (s *InMemory) CreateThreatIntel(ctx context.Context, record ThreatIntelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intel = append(s.intel, record)
	return nil
}

func (s *InMemory) CreateAgent(ctx context.Context, agent domain.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.AgentID] = agent
	return nil
}

func (s *InMemory) GetAgentByID(ctx context.Context, agentID string) (domain.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok {
		return domain.AgentRecord{}, core.ErrConnectorNotFound
	}
	return a, nil
}

func (s *InMemory) UpdateAgent(ctx context.Context, agentID string, mutate func(*domain.AgentRecord)) (domain.AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return domain.AgentRecord{}, core.ErrConnectorNotFound
	}
	mutate(&a)
	s.agents[agentID] = a
	return a, nil
}

func (s *InMemory) ListAgentsByConnector(ctx context.Context, connectorID string) ([]domain.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AgentRecord
	for _, a := range s.agents {
		if a.ConnectorID == connectorID {
			out = append(out, a)
		}
	}
	return out, nil
}

var _ Store = (*InMemory)(nil)
