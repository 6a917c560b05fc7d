package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

type fakeSink struct {
	events []domain.RawEvent
}

func (s *fakeSink) Emit(ctx context.Context, event domain.RawEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestAdapter(requiresApproval bool) *Adapter {
	return New(Config{
		ConnectorID:    "c1",
		OrganizationID: "org1",
		Configuration: domain.AgentConfig{
			RegistrationEnabled:          true,
			RegistrationRequiresApproval: requiresApproval,
			OrganizationKey:              "secret-key",
		},
		Sink: &fakeSink{},
	})
}

func TestRegisterAgentRejectsWrongOrganizationKey(t *testing.T) {
	a := newTestAdapter(false)
	_, err := a.RegisterAgent(context.Background(), RegistrationRequest{OrganizationKey: "wrong"})
	assert.Error(t, err)
}

func TestRegisterAgentStartsActiveWhenNoApprovalRequired(t *testing.T) {
	a := newTestAdapter(false)
	rec, err := a.RegisterAgent(context.Background(), RegistrationRequest{OrganizationKey: "secret-key", Hostname: "h1"})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusActive, rec.Status)
}

func TestRegisterAgentStartsInactiveWhenApprovalRequired(t *testing.T) {
	a := newTestAdapter(true)
	rec, err := a.RegisterAgent(context.Background(), RegistrationRequest{OrganizationKey: "secret-key"})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusInactive, rec.Status)
}

func TestRunOnceRefreshesActiveAgentCount(t *testing.T) {
	a := newTestAdapter(false)
	_, err := a.RegisterAgent(context.Background(), RegistrationRequest{OrganizationKey: "secret-key"})
	require.NoError(t, err)
	_, err = a.RegisterAgent(context.Background(), RegistrationRequest{OrganizationKey: "secret-key"})
	require.NoError(t, err)

	require.NoError(t, a.RunOnce(context.Background()))
	assert.Equal(t, 2, a.ActiveAgentCount())
}

func TestProcessEventsEmitsTaggedEvents(t *testing.T) {
	sink := &fakeSink{}
	a := New(Config{
		ConnectorID: "c1", OrganizationID: "org1",
		Configuration: domain.AgentConfig{RegistrationEnabled: true, OrganizationKey: "secret-key"},
		Sink:          sink,
	})
	rec, err := a.RegisterAgent(context.Background(), RegistrationRequest{OrganizationKey: "secret-key"})
	require.NoError(t, err)

	err = a.ProcessEvents(context.Background(), rec.AgentID, []EventPayload{
		{Timestamp: time.Now(), Type: "process-start", Data: map[string]interface{}{"pid": 1}},
	})
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, rec.AgentID, sink.events[0].Metadata["agentId"])
}

func TestProcessHeartbeatRejectsUnknownAgent(t *testing.T) {
	a := newTestAdapter(false)
	err := a.ProcessHeartbeat(context.Background(), "unknown", nil)
	assert.Error(t, err)
}
