package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

func TestInMemoryConnectorRoundTrip(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	s.PutConnector(ConnectorRow{ID: "c1", Name: "test", Type: domain.ConnectorTypeAPI})

	row, err := s.GetConnector(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "test", row.Name)

	_, err = s.UpdateConnector(ctx, "c1", func(r *ConnectorRow) {
		r.Status = domain.StatusActive
	})
	require.NoError(t, err)

	row, err = s.GetConnector(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, row.Status)
}

func TestInMemoryGetConnectorNotFound(t *testing.T) {
	s := NewInMemory()
	_, err := s.GetConnector(context.Background(), "missing")
	assert.Error(t, err)
}

func TestInMemoryCreateAlertAndList(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	id, err := s.CreateAlert(ctx, domain.Alert{
		Title:     "test alert",
		Severity:  domain.SeverityHigh,
		Timestamp: time.Now(),
		Status:    domain.AlertStatusNew,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, s.Alerts(), 1)
}

func TestInMemoryAgentLifecycle(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	err := s.CreateAgent(ctx, domain.AgentRecord{AgentID: "a1", ConnectorID: "c1", Status: domain.AgentStatusInactive})
	require.NoError(t, err)

	a, err := s.GetAgentByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusInactive, a.Status)

	_, err = s.UpdateAgent(ctx, "a1", func(a *domain.AgentRecord) { a.Status = domain.AgentStatusActive })
	require.NoError(t, err)

	list, err := s.ListAgentsByConnector(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.AgentStatusActive, list[0].Status)
}
